package connectclient

import (
	"errors"
	"fmt"
	"hash/fnv"
	"time"
)

// Version is the library version reported in the default user agent.
const Version = "0.1.0"

// DefaultUserAgent identifies this library in outgoing requests.
const DefaultUserAgent = "connect-client-go/" + Version

// ServiceOptions is the immutable configuration aggregate handed to
// transport construction: endpoint, credentials, the clamped retry
// timeout policy, and the resolved executor factory. Build one with a
// Builder; modify one by seeding a new Builder via ToBuilder. Once built,
// an options value never changes, so it is safe to share across
// goroutines without locking.
type ServiceOptions struct {
	endpoint    string
	userAgent   string
	credentials Credentials
	policy      RetryTimeoutPolicy
	factory     ExecutorFactory
	factoryKind string

	registry *FactoryRegistry
	pool     *SharedResourcePool
}

// Builder accumulates parameters and produces one immutable
// ServiceOptions.
//
// Setters that enforce an invariant (SetInitialTimeout,
// SetTimeoutMultiplier) validate immediately and return an error; all
// other setters chain. Build resolves the executor factory, truncates the
// max timeout to whole milliseconds, clamps it, and never fails for values
// the setters accepted.
type Builder struct {
	endpoint    string
	userAgent   string
	credentials Credentials
	initial     time.Duration
	multiplier  float64
	max         time.Duration
	factory     ExecutorFactory
	registry    *FactoryRegistry
	pool        *SharedResourcePool
}

// NewBuilder returns a Builder carrying the default timeout triple, the
// process-wide registry and pool, and no explicit factory.
func NewBuilder() *Builder {
	return &Builder{
		userAgent:  DefaultUserAgent,
		initial:    DefaultInitialTimeout,
		multiplier: DefaultTimeoutMultiplier,
		max:        DefaultMaxTimeout,
		registry:   DefaultRegistry(),
		pool:       DefaultPool(),
	}
}

// SetEndpoint sets the service endpoint URL. Endpoints are validated at
// channel construction, not here.
func (b *Builder) SetEndpoint(endpoint string) *Builder {
	b.endpoint = endpoint
	return b
}

// SetUserAgent overrides the default User-Agent header value.
func (b *Builder) SetUserAgent(userAgent string) *Builder {
	b.userAgent = userAgent
	return b
}

// SetCredentials sets the client credentials. Credentials participate in
// neither equality nor snapshots.
func (b *Builder) SetCredentials(credentials Credentials) *Builder {
	b.credentials = credentials
	return b
}

// SetExecutorFactory supplies an explicit factory, which takes precedence
// over discovery and the default at Build. Passing nil clears an explicit
// factory, restoring discovery.
func (b *Builder) SetExecutorFactory(factory ExecutorFactory) *Builder {
	b.factory = factory
	return b
}

// SetRegistry sets the registry consulted for factory discovery. A nil
// registry means DefaultRegistry.
func (b *Builder) SetRegistry(registry *FactoryRegistry) *Builder {
	b.registry = registry
	return b
}

// SetPool sets the shared resource pool backing the default factory. A
// nil pool means DefaultPool.
func (b *Builder) SetPool(pool *SharedResourcePool) *Builder {
	b.pool = pool
	return b
}

// SetInitialTimeout sets the timeout applied to the first attempt. Fails
// fast: a value <= 0, or one finer than whole milliseconds (the persisted
// granularity), is rejected here, not deferred to Build.
func (b *Builder) SetInitialTimeout(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: initial timeout must be > 0, got %v", ErrInvalidConfig, d)
	}
	if d%time.Millisecond != 0 {
		return fmt.Errorf("%w: initial timeout must be whole milliseconds, got %v", ErrInvalidConfig, d)
	}
	b.initial = d
	return nil
}

// SetTimeoutMultiplier sets the per-attempt growth factor. Fails fast:
// NaN or a value below 1.0 is rejected here, not deferred to Build.
func (b *Builder) SetTimeoutMultiplier(m float64) error {
	// The inverted form also rejects NaN.
	if !(m >= 1.0) {
		return fmt.Errorf("%w: timeout multiplier must be >= 1, got %v", ErrInvalidConfig, m)
	}
	b.multiplier = m
	return nil
}

// SetMaxTimeout sets the per-attempt timeout ceiling. The value is not
// validated here: Build truncates it to whole milliseconds (the persisted
// granularity) and clamps a result below the initial timeout up to it; the
// built options reflect both adjustments.
func (b *Builder) SetMaxTimeout(d time.Duration) *Builder {
	b.max = d
	return b
}

// Build resolves the executor factory and returns an immutable
// ServiceOptions.
//
// Factory resolution precedence: the explicitly supplied factory, else a
// registry-discovered factory (deterministic first by sorted kind), else
// the default pool-backed factory. Building twice from the same builder
// state yields independently constructed, structurally equal instances.
func (b *Builder) Build() (*ServiceOptions, error) {
	registry := b.registry
	if registry == nil {
		registry = DefaultRegistry()
	}
	pool := b.pool
	if pool == nil {
		pool = DefaultPool()
	}

	policy, err := NewRetryTimeoutPolicy(b.initial, b.multiplier, b.max.Truncate(time.Millisecond))
	if err != nil {
		return nil, err
	}

	factory := b.factory
	if factory == nil {
		discovered, err := registry.Discover()
		switch {
		case err == nil:
			factory = discovered
		case errors.Is(err, ErrNoFactories):
			factory = NewDefaultExecutorFactory(pool)
		default:
			return nil, err
		}
	}

	return &ServiceOptions{
		endpoint:    b.endpoint,
		userAgent:   b.userAgent,
		credentials: b.credentials,
		policy:      policy,
		factory:     factory,
		factoryKind: factory.Kind(),
		registry:    registry,
		pool:        pool,
	}, nil
}

// Endpoint returns the service endpoint URL.
func (o *ServiceOptions) Endpoint() string {
	return o.endpoint
}

// UserAgent returns the User-Agent header value.
func (o *ServiceOptions) UserAgent() string {
	return o.userAgent
}

// Credentials returns the client credentials, or nil.
func (o *ServiceOptions) Credentials() Credentials {
	return o.credentials
}

// TimeoutPolicy returns the clamped retry timeout policy.
func (o *ServiceOptions) TimeoutPolicy() RetryTimeoutPolicy {
	return o.policy
}

// ExecutorFactory returns the resolved executor factory.
func (o *ServiceOptions) ExecutorFactory() ExecutorFactory {
	return o.factory
}

// FactoryKind returns the resolved factory's stable kind name.
func (o *ServiceOptions) FactoryKind() string {
	return o.factoryKind
}

// Registry returns the factory registry the options were built against.
func (o *ServiceOptions) Registry() *FactoryRegistry {
	return o.registry
}

// Pool returns the shared resource pool the options were built against.
func (o *ServiceOptions) Pool() *SharedResourcePool {
	return o.pool
}

// Equal reports whether two options share the same effective retry
// configuration and executor strategy: the clamped timeout triple plus
// the factory kind. Endpoint, user agent, and credentials do not
// participate, and neither does live resource state.
func (o *ServiceOptions) Equal(other *ServiceOptions) bool {
	if o == nil || other == nil {
		return o == other
	}
	return o.policy == other.policy && o.factoryKind == other.factoryKind
}

// Hash returns a structural hash consistent with Equal.
func (o *ServiceOptions) Hash() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%g|%d|%s",
		o.policy.initial, o.policy.multiplier, o.policy.max, o.factoryKind)
	return h.Sum64()
}

// ToBuilder returns a Builder seeded with every field of o, including the
// already-resolved factory. Overriding a field and rebuilding is the only
// supported modification path.
func (o *ServiceOptions) ToBuilder() *Builder {
	return &Builder{
		endpoint:    o.endpoint,
		userAgent:   o.userAgent,
		credentials: o.credentials,
		initial:     o.policy.initial,
		multiplier:  o.policy.multiplier,
		max:         o.policy.max,
		factory:     o.factory,
		registry:    o.registry,
		pool:        o.pool,
	}
}
