package connectclient

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
)

var errDown = connect.NewError(connect.CodeUnavailable, errors.New("down"))

func failTimes(b *Breaker, t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := b.Do(func() error { return errDown }); err == nil {
			t.Fatal("expected failure to propagate")
		}
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3})

	failTimes(b, t, 2)
	if got := b.State(); got != StateClosed {
		t.Fatalf("State() = %v after 2 failures, want closed", got)
	}

	failTimes(b, t, 1)
	if got := b.State(); got != StateOpen {
		t.Fatalf("State() = %v after 3 failures, want open", got)
	}

	// Open breaker rejects without running the call.
	ran := false
	err := b.Do(func() error { ran = true; return nil })
	if code := connect.CodeOf(err); code != connect.CodeUnavailable {
		t.Errorf("rejection code = %v, want %v", code, connect.CodeUnavailable)
	}
	if ran {
		t.Error("open breaker still ran the call")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3})

	failTimes(b, t, 2)
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	failTimes(b, t, 2)

	if got := b.State(); got != StateClosed {
		t.Errorf("State() = %v, want closed (success reset the streak)", got)
	}
}

func TestBreaker_RecoversThroughHalfOpen(t *testing.T) {
	var transitions []string
	b := NewBreaker(BreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Millisecond,
		OnStateChange: func(from, to BreakerState) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})

	failTimes(b, t, 2)
	if got := b.State(); got != StateOpen {
		t.Fatalf("State() = %v, want open", got)
	}

	time.Sleep(50 * time.Millisecond)

	// First probe moves the breaker to half-open.
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if got := b.State(); got != StateHalfOpen {
		t.Fatalf("State() = %v after one probe success, want half-open", got)
	}

	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("second probe failed: %v", err)
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("State() = %v after recovery, want closed", got)
	}

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestBreaker_ReopensOnHalfOpenFailure(t *testing.T) {
	b := NewBreaker(BreakerConfig{
		FailureThreshold: 1,
		Cooldown:         30 * time.Millisecond,
	})

	failTimes(b, t, 1)
	time.Sleep(50 * time.Millisecond)

	failTimes(b, t, 1) // probe fails
	if got := b.State(); got != StateOpen {
		t.Fatalf("State() = %v, want reopened", got)
	}

	// Reopened: the cooldown starts over.
	err := b.Do(func() error { return nil })
	if code := connect.CodeOf(err); code != connect.CodeUnavailable {
		t.Errorf("rejection code = %v, want %v", code, connect.CodeUnavailable)
	}
}

func TestBreaker_IgnoresNonFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 2})

	// Not-found errors are the caller's problem, not the service's.
	notFound := connect.NewError(connect.CodeNotFound, errors.New("missing"))
	for i := 0; i < 5; i++ {
		b.Do(func() error { return notFound })
	}

	if got := b.State(); got != StateClosed {
		t.Errorf("State() = %v, want closed", got)
	}
}

func TestBreakerState_String(t *testing.T) {
	if got := StateHalfOpen.String(); got != "half-open" {
		t.Errorf("String() = %q, want %q", got, "half-open")
	}
	if got := BreakerState(42).String(); got != "unknown(42)" {
		t.Errorf("String() = %q, want %q", got, "unknown(42)")
	}
}

func TestBreakerInterceptor_RejectsWithoutCalling(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1})

	var calls int
	next := func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		calls++
		return nil, errDown
	}
	wrapped := BreakerInterceptor(b)(next)

	req := connect.NewRequest(&emptypb.Empty{})
	if _, err := wrapped(context.Background(), req); err == nil {
		t.Fatal("expected first call to fail")
	}
	if _, err := wrapped(context.Background(), req); connect.CodeOf(err) != connect.CodeUnavailable {
		t.Fatalf("expected rejection, got %v", err)
	}

	if calls != 1 {
		t.Errorf("next calls = %d, want 1 (second call rejected locally)", calls)
	}
}

func TestChannel_BreakerTripsAcrossCalls(t *testing.T) {
	var serverCalls atomic.Int32
	ln := startPingServer(t, func(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[emptypb.Empty], error) {
		serverCalls.Add(1)
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("down"))
	})

	breaker := NewBreaker(BreakerConfig{FailureThreshold: 2})
	channel := newTestChannel(t, ln,
		NewBuilder().SetRegistry(NewFactoryRegistry()).SetPool(NewSharedResourcePool()),
		WithMaxAttempts(1),
		WithBreaker(breaker))

	for i := 0; i < 2; i++ {
		if err := channel.Probe(context.Background(), testProcedure); err == nil {
			t.Fatalf("probe %d: expected failure", i)
		}
	}
	if got := breaker.State(); got != StateOpen {
		t.Fatalf("State() = %v after failures, want open", got)
	}

	// The third probe is rejected locally; the server never sees it.
	if err := channel.Probe(context.Background(), testProcedure); err == nil {
		t.Fatal("expected rejection from open breaker")
	}
	if got := serverCalls.Load(); got != 2 {
		t.Errorf("server calls = %d, want 2", got)
	}

	// The breaker is shared state, usable outside the channel too.
	if got := breaker.State(); got != StateOpen {
		t.Errorf("State() = %v, want open", got)
	}
}
