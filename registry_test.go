package connectclient

import (
	"errors"
	"reflect"
	"testing"
)

// stubFactory is a minimal ExecutorFactory for registry, options, and
// snapshot tests. Get hands out one lazily built executor.
type stubFactory struct {
	kind     string
	gets     int
	releases int
	executor Executor
}

func (f *stubFactory) Kind() string { return f.kind }

func (f *stubFactory) Get() (Executor, error) {
	f.gets++
	if f.executor == nil {
		executor, err := NewScheduledExecutor(ExecutorConfig{Workers: 1})
		if err != nil {
			return nil, err
		}
		f.executor = executor
	}
	return f.executor, nil
}

func (f *stubFactory) Release(Executor) error {
	f.releases++
	return nil
}

func stubConstructor(kind string) FactoryConstructor {
	return func() (ExecutorFactory, error) {
		return &stubFactory{kind: kind}, nil
	}
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	registry := NewFactoryRegistry()

	if err := registry.Register("burst", stubConstructor("burst")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	factory, err := registry.Resolve("burst")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if factory.Kind() != "burst" {
		t.Errorf("Kind() = %q, want %q", factory.Kind(), "burst")
	}
}

func TestRegistryRegister_DuplicateKind(t *testing.T) {
	registry := NewFactoryRegistry()

	if err := registry.Register("burst", stubConstructor("burst")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	err := registry.Register("burst", stubConstructor("burst"))
	if !errors.Is(err, ErrDuplicateKind) {
		t.Errorf("duplicate Register error = %v, want ErrDuplicateKind", err)
	}
}

func TestRegistryRegister_Validation(t *testing.T) {
	registry := NewFactoryRegistry()

	tests := []struct {
		name string
		kind string
		ctor FactoryConstructor
	}{
		{"empty kind", "", stubConstructor("")},
		{"kind with spaces", "my factory", stubConstructor("my factory")},
		{"kind with traversal", "a..b", stubConstructor("a..b")},
		{"nil constructor", "burst", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := registry.Register(tt.kind, tt.ctor)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Register(%q) error = %v, want ErrInvalidConfig", tt.kind, err)
			}
		})
	}
}

func TestRegistryResolve_UnknownKind(t *testing.T) {
	registry := NewFactoryRegistry()

	_, err := registry.Resolve("missing")
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Resolve error = %v, want ErrUnknownKind", err)
	}
}

func TestRegistryResolve_ConstructorError(t *testing.T) {
	registry := NewFactoryRegistry()

	boom := errors.New("boom")
	registry.Register("broken", func() (ExecutorFactory, error) {
		return nil, boom
	})

	_, err := registry.Resolve("broken")
	if !errors.Is(err, boom) {
		t.Errorf("Resolve error = %v, want wrapped constructor error", err)
	}
}

func TestRegistryResolve_KindMismatch(t *testing.T) {
	registry := NewFactoryRegistry()

	registry.Register("advertised", func() (ExecutorFactory, error) {
		return &stubFactory{kind: "actual"}, nil
	})

	_, err := registry.Resolve("advertised")
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("mismatched constructor error = %v, want ErrInvalidConfig", err)
	}
}

func TestRegistryKinds_Sorted(t *testing.T) {
	registry := NewFactoryRegistry()

	for _, kind := range []string{"zeta", "alpha", "mid"} {
		if err := registry.Register(kind, stubConstructor(kind)); err != nil {
			t.Fatalf("Register(%q) failed: %v", kind, err)
		}
	}

	want := []string{"alpha", "mid", "zeta"}
	if got := registry.Kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("Kinds() = %v, want %v", got, want)
	}
}

func TestRegistryDiscover_DeterministicFirst(t *testing.T) {
	registry := NewFactoryRegistry()

	// Registration order must not matter.
	for _, kind := range []string{"zeta", "alpha"} {
		if err := registry.Register(kind, stubConstructor(kind)); err != nil {
			t.Fatalf("Register(%q) failed: %v", kind, err)
		}
	}

	for i := 0; i < 3; i++ {
		factory, err := registry.Discover()
		if err != nil {
			t.Fatalf("Discover failed: %v", err)
		}
		if factory.Kind() != "alpha" {
			t.Errorf("Discover picked %q, want %q", factory.Kind(), "alpha")
		}
	}
}

func TestRegistryDiscover_Empty(t *testing.T) {
	registry := NewFactoryRegistry()

	_, err := registry.Discover()
	if !errors.Is(err, ErrNoFactories) {
		t.Errorf("Discover on empty registry error = %v, want ErrNoFactories", err)
	}
}

func TestDefaultRegistry_IsProcessWide(t *testing.T) {
	if DefaultRegistry() != DefaultRegistry() {
		t.Error("DefaultRegistry returned different instances")
	}
}
