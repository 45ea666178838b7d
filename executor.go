package connectclient

import "time"

const (
	// DefaultFactoryKind is the kind name of the default executor factory.
	DefaultFactoryKind = "default"

	// ExecutorResourceKind is the pool resource kind of the shared
	// scheduled executor.
	ExecutorResourceKind = "scheduled-executor"
)

// Executor runs background tasks for RPC call lifecycles. Executors are
// obtained through an ExecutorFactory; callers never shut one down
// directly, they release it back to the factory that produced it.
type Executor interface {
	// Submit runs task as soon as a worker is available.
	Submit(task func()) error

	// Schedule runs task after delay. The returned CancelFunc evicts a
	// still-pending task.
	Schedule(delay time.Duration, task func()) (CancelFunc, error)
}

// ExecutorFactory obtains and releases executors.
//
// A factory is identified by a stable kind name: the kind, not the
// instance, is what options equality and persisted configuration use.
// Each Get must be paired with at most one Release of the returned
// executor.
type ExecutorFactory interface {
	// Kind returns the stable identifier for this factory.
	Kind() string

	// Get returns an executor ready for use.
	Get() (Executor, error)

	// Release returns an executor obtained from Get.
	Release(executor Executor) error
}

// executorResource describes the process-shared scheduled executor.
var executorResource = Resource{
	Kind: ExecutorResourceKind,
	Create: func() (any, error) {
		return NewScheduledExecutor(ExecutorConfig{})
	},
	Close: func(instance any) error {
		return instance.(*ScheduledExecutor).Close()
	},
}

// DefaultExecutorFactory shares one scheduled executor per pool through
// reference counting: Get acquires, Release releases, and the executor is
// torn down when the last holder releases it. Unrelated clients in the
// same process obtain the same executor instance as long as any of them
// holds it.
type DefaultExecutorFactory struct {
	pool *SharedResourcePool
}

var _ ExecutorFactory = (*DefaultExecutorFactory)(nil)

// NewDefaultExecutorFactory creates a factory over pool. A nil pool means
// the process-wide DefaultPool.
func NewDefaultExecutorFactory(pool *SharedResourcePool) *DefaultExecutorFactory {
	if pool == nil {
		pool = DefaultPool()
	}
	return &DefaultExecutorFactory{pool: pool}
}

// Kind returns DefaultFactoryKind.
func (f *DefaultExecutorFactory) Kind() string {
	return DefaultFactoryKind
}

// Get acquires the shared scheduled executor, creating it on first use.
func (f *DefaultExecutorFactory) Get() (Executor, error) {
	return AcquireTyped[Executor](f.pool, executorResource)
}

// Release returns the shared executor. The last release tears it down.
func (f *DefaultExecutorFactory) Release(executor Executor) error {
	return f.pool.Release(executorResource, executor)
}
