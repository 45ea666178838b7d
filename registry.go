package connectclient

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// FactoryConstructor builds an executor factory during resolution.
// Constructors take no arguments; anything a factory needs must be
// captured at registration time.
type FactoryConstructor func() (ExecutorFactory, error)

// FactoryRegistry maps stable kind names to executor factory
// constructors. It replaces environment scanning with explicit
// registration: populate it at process start (init functions, wiring
// code, or dependency injection) and resolve kinds recorded in persisted
// configuration through it.
//
// A process-wide registry is available via DefaultRegistry; Builders and
// Rehydrate accept a specific registry where injection is preferred.
type FactoryRegistry struct {
	mu           sync.RWMutex
	constructors map[string]FactoryConstructor
	logger       *zap.Logger
}

// RegistryOption configures a FactoryRegistry.
type RegistryOption func(*FactoryRegistry)

// WithRegistryLogger sets the logger for registration events.
func WithRegistryLogger(logger *zap.Logger) RegistryOption {
	return func(r *FactoryRegistry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewFactoryRegistry creates an empty registry.
func NewFactoryRegistry(opts ...RegistryOption) *FactoryRegistry {
	r := &FactoryRegistry{
		constructors: make(map[string]FactoryConstructor),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// defaultRegistry is the process-wide registry used when none is supplied.
var defaultRegistry = NewFactoryRegistry()

// DefaultRegistry returns the process-wide factory registry.
func DefaultRegistry() *FactoryRegistry {
	return defaultRegistry
}

// Register adds a constructor under kind. Kind names are validated (see
// ValidateKind); registering a kind twice returns ErrDuplicateKind.
func (r *FactoryRegistry) Register(kind string, ctor FactoryConstructor) error {
	if err := ValidateKind(kind); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if ctor == nil {
		return fmt.Errorf("%w: constructor for kind %q is nil", ErrInvalidConfig, kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[kind]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateKind, kind)
	}

	r.constructors[kind] = ctor
	r.logger.Debug("factory registered", zap.String("kind", kind))
	return nil
}

// Resolve constructs the factory registered under kind. Unknown kinds
// return ErrUnknownKind. The constructed factory must report the kind it
// was registered under.
func (r *FactoryRegistry) Resolve(kind string) (ExecutorFactory, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	factory, err := ctor()
	if err != nil {
		return nil, fmt.Errorf("construct factory %q: %w", kind, err)
	}
	if factory.Kind() != kind {
		return nil, fmt.Errorf("%w: constructor for %q produced factory kind %q", ErrInvalidConfig, kind, factory.Kind())
	}
	return factory, nil
}

// Kinds returns all registered kind names in sorted order.
func (r *FactoryRegistry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.constructors))
	for kind := range r.constructors {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Discover returns a factory when at least one kind is registered,
// constructing the first kind in sorted order so the choice is
// deterministic. Returns ErrNoFactories when the registry is empty.
func (r *FactoryRegistry) Discover() (ExecutorFactory, error) {
	kinds := r.Kinds()
	if len(kinds) == 0 {
		return nil, ErrNoFactories
	}
	return r.Resolve(kinds[0])
}
