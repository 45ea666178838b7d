package connectclient

import (
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

const (
	// DefaultExecutorWorkers is the worker pool size for the shared executor.
	DefaultExecutorWorkers = 8

	// DefaultExecutorKeepAlive is how long an idle worker is retained
	// before being reclaimed.
	DefaultExecutorKeepAlive = 5 * time.Second

	// executorReleaseTimeout bounds how long Close waits for running tasks.
	executorReleaseTimeout = 2 * time.Second
)

// ExecutorConfig configures a ScheduledExecutor.
type ExecutorConfig struct {
	// Workers is the maximum number of concurrently running tasks.
	// Default: 8
	Workers int

	// KeepAlive is how long idle workers are retained.
	// Default: 5s
	KeepAlive time.Duration

	// Logger records executor lifecycle events. Default: no-op.
	Logger *zap.Logger
}

// CancelFunc cancels a scheduled task. It reports true when the task was
// evicted before it ran.
type CancelFunc func() bool

// ScheduledExecutor runs immediate and deferred tasks on a bounded worker
// pool. Idle workers are reclaimed after the keep-alive window. Cancelled
// scheduled tasks are evicted from the pending set rather than left to
// fire at their scheduled time.
type ScheduledExecutor struct {
	pool   *ants.Pool
	logger *zap.Logger

	mu     sync.Mutex
	timers map[uint64]*time.Timer
	nextID uint64
	closed bool
}

var _ Executor = (*ScheduledExecutor)(nil)

// NewScheduledExecutor creates an executor. Zero config fields fall back
// to the defaults.
func NewScheduledExecutor(cfg ExecutorConfig) (*ScheduledExecutor, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultExecutorWorkers
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultExecutorKeepAlive
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	pool, err := ants.NewPool(cfg.Workers, ants.WithExpiryDuration(cfg.KeepAlive))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &ScheduledExecutor{
		pool:   pool,
		logger: cfg.Logger,
		timers: make(map[uint64]*time.Timer),
	}, nil
}

// Submit runs task as soon as a worker is available.
func (e *ScheduledExecutor) Submit(task func()) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()

	if closed {
		return ErrExecutorStopped
	}

	if err := e.pool.Submit(task); err != nil {
		return fmt.Errorf("submit task: %w", err)
	}
	return nil
}

// Schedule runs task after delay on the worker pool. The returned
// CancelFunc evicts the task from the pending set; it reports true when
// the task had not yet started.
func (e *ScheduledExecutor) Schedule(delay time.Duration, task func()) (CancelFunc, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrExecutorStopped
	}

	id := e.nextID
	e.nextID++

	timer := time.AfterFunc(delay, func() {
		e.mu.Lock()
		_, pending := e.timers[id]
		delete(e.timers, id)
		closed := e.closed
		e.mu.Unlock()

		// Evicted by CancelFunc or Close between firing and here.
		if !pending || closed {
			return
		}

		if err := e.pool.Submit(task); err != nil {
			e.logger.Warn("dropping scheduled task", zap.Error(err))
		}
	})
	e.timers[id] = timer
	e.mu.Unlock()

	cancel := func() bool {
		e.mu.Lock()
		_, pending := e.timers[id]
		delete(e.timers, id)
		e.mu.Unlock()

		if pending {
			timer.Stop()
		}
		return pending
	}
	return cancel, nil
}

// Running returns the number of live workers: those executing a task plus
// those idling within the keep-alive window.
func (e *ScheduledExecutor) Running() int {
	return e.pool.Running()
}

// Close stops the executor: pending scheduled tasks are evicted, then the
// worker pool is released, waiting briefly for running tasks to finish.
// Close is safe to call multiple times.
func (e *ScheduledExecutor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	for id, timer := range e.timers {
		timer.Stop()
		delete(e.timers, id)
	}
	e.mu.Unlock()

	if err := e.pool.ReleaseTimeout(executorReleaseTimeout); err != nil {
		return fmt.Errorf("release worker pool: %w", err)
	}

	e.logger.Info("executor stopped")
	return nil
}
