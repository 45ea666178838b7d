package connectclient

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultExecutorFactory_Kind(t *testing.T) {
	factory := NewDefaultExecutorFactory(nil)

	if got := factory.Kind(); got != DefaultFactoryKind {
		t.Errorf("Kind() = %q, want %q", got, DefaultFactoryKind)
	}
}

func TestNewDefaultExecutorFactory_NilPoolUsesDefault(t *testing.T) {
	factory := NewDefaultExecutorFactory(nil)

	if factory.pool != DefaultPool() {
		t.Error("nil pool did not fall back to DefaultPool")
	}
}

func TestDefaultExecutorFactory_GetReturnsWorkingExecutor(t *testing.T) {
	pool := NewSharedResourcePool()
	factory := NewDefaultExecutorFactory(pool)

	executor, err := factory.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer factory.Release(executor)

	done := make(chan struct{})
	if err := executor.Submit(func() { close(done) }); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submitted task never ran")
	}
}

func TestDefaultExecutorFactory_SharesOneExecutor(t *testing.T) {
	pool := NewSharedResourcePool()
	first := NewDefaultExecutorFactory(pool)
	second := NewDefaultExecutorFactory(pool)

	a, err := first.Get()
	if err != nil {
		t.Fatalf("first Get failed: %v", err)
	}
	b, err := second.Get()
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}

	if a != b {
		t.Error("factories over one pool returned different executors")
	}

	// The executor survives until the last holder releases.
	if err := first.Release(a); err != nil {
		t.Fatalf("first Release failed: %v", err)
	}
	if err := b.Submit(func() {}); err != nil {
		t.Errorf("executor stopped while still held: %v", err)
	}

	if err := second.Release(b); err != nil {
		t.Fatalf("second Release failed: %v", err)
	}

	pool.mu.Lock()
	_, exists := pool.entries[ExecutorResourceKind]
	pool.mu.Unlock()
	if exists {
		t.Error("executor entry still present after last release")
	}
}

func TestDefaultExecutorFactory_ReleaseWithoutGet(t *testing.T) {
	pool := NewSharedResourcePool()
	factory := NewDefaultExecutorFactory(pool)

	executor, _ := NewScheduledExecutor(ExecutorConfig{})
	defer executor.Close()

	err := factory.Release(executor)
	if !errors.Is(err, ErrNotAcquired) {
		t.Errorf("Release without Get error = %v, want ErrNotAcquired", err)
	}
}

func TestDefaultExecutorFactory_ReleasedExecutorStops(t *testing.T) {
	pool := NewSharedResourcePool()
	factory := NewDefaultExecutorFactory(pool)

	executor, err := factory.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := factory.Release(executor); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	if err := executor.Submit(func() {}); !errors.Is(err, ErrExecutorStopped) {
		t.Errorf("Submit after teardown error = %v, want ErrExecutorStopped", err)
	}
}
