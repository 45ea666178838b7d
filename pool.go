package connectclient

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Resource describes a shareable background resource managed by a
// SharedResourcePool. Kind is the stable identifier: two Resource values
// with the same Kind address the same pool entry.
type Resource struct {
	// Kind identifies the resource within a pool.
	Kind string

	// Create constructs the instance on the first acquisition. Instances
	// should be pointers; Release compares instance identity.
	Create func() (any, error)

	// Close tears the instance down after the last release. May be nil.
	Close func(instance any) error
}

// poolEntry tracks one live instance and its holders.
// Invariant: an entry exists iff refs > 0.
type poolEntry struct {
	instance any
	refs     int
}

// SharedResourcePool holds lazily-created resources shared by reference
// count. An instance is created when its kind goes from zero to one
// holders, kept stable while any holder remains, and torn down exactly
// once when the count returns to zero. The kind is then eligible for
// re-creation.
//
// The pool is safe for concurrent use from any number of goroutines. A
// process-wide pool is available via DefaultPool; tests should construct
// a fresh pool so no state crosses test boundaries.
type SharedResourcePool struct {
	mu      sync.Mutex
	entries map[string]*poolEntry
	logger  *zap.Logger
}

// PoolOption configures a SharedResourcePool.
type PoolOption func(*SharedResourcePool)

// WithPoolLogger sets the logger for resource lifecycle events.
func WithPoolLogger(logger *zap.Logger) PoolOption {
	return func(p *SharedResourcePool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewSharedResourcePool creates an empty pool.
func NewSharedResourcePool(opts ...PoolOption) *SharedResourcePool {
	p := &SharedResourcePool{
		entries: make(map[string]*poolEntry),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// defaultPool is the process-wide pool used when no pool is supplied.
var defaultPool = NewSharedResourcePool()

// DefaultPool returns the process-wide shared resource pool.
func DefaultPool() *SharedResourcePool {
	return defaultPool
}

// Acquire returns the live instance for res.Kind, creating it via
// res.Create when there is no current holder. Every successful Acquire
// must be paired with exactly one Release of the returned instance.
func (p *SharedResourcePool) Acquire(res Resource) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.entries[res.Kind]; ok {
		entry.refs++
		p.logger.Debug("resource acquired",
			zap.String("kind", res.Kind),
			zap.Int("refs", entry.refs))
		return entry.instance, nil
	}

	instance, err := res.Create()
	if err != nil {
		return nil, fmt.Errorf("create resource %q: %w", res.Kind, err)
	}

	p.entries[res.Kind] = &poolEntry{instance: instance, refs: 1}
	p.logger.Info("resource created", zap.String("kind", res.Kind))
	return instance, nil
}

// Release returns one acquisition of instance. When the last holder
// releases, the instance is torn down via res.Close and the entry is
// cleared.
//
// Releasing a kind with no outstanding acquisition (including a second
// release of the same handle) returns ErrNotAcquired; releasing an
// instance other than the held one returns ErrWrongInstance. The
// reference count is never decremented below zero.
func (p *SharedResourcePool) Release(res Resource, instance any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[res.Kind]
	if !ok {
		return fmt.Errorf("%w: kind %q", ErrNotAcquired, res.Kind)
	}
	if entry.instance != instance {
		return fmt.Errorf("%w: kind %q", ErrWrongInstance, res.Kind)
	}

	entry.refs--
	if entry.refs > 0 {
		p.logger.Debug("resource released",
			zap.String("kind", res.Kind),
			zap.Int("refs", entry.refs))
		return nil
	}

	delete(p.entries, res.Kind)
	p.logger.Info("resource torn down", zap.String("kind", res.Kind))

	if res.Close != nil {
		if err := res.Close(instance); err != nil {
			return fmt.Errorf("close resource %q: %w", res.Kind, err)
		}
	}
	return nil
}

// AcquireTyped acquires res from the pool and asserts the instance to T.
// Example:
//
//	executor, err := connectclient.AcquireTyped[Executor](pool, res)
func AcquireTyped[T any](p *SharedResourcePool, res Resource) (T, error) {
	var zero T

	instance, err := p.Acquire(res)
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		// Undo the acquire; the caller never saw the instance.
		if rerr := p.Release(res, instance); rerr != nil {
			p.logger.Warn("resource release failed",
				zap.String("kind", res.Kind),
				zap.Error(rerr))
		}
		return zero, fmt.Errorf("resource %q: unexpected instance type %T", res.Kind, instance)
	}
	return typed, nil
}
