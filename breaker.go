package connectclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"connectrpc.com/connect"
)

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	// StateClosed passes calls through and counts consecutive failures.
	StateClosed BreakerState = iota

	// StateOpen rejects calls immediately until the cooldown elapses.
	StateOpen

	// StateHalfOpen lets probe calls through to test recovery.
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Breaker defaults.
const (
	DefaultFailureThreshold = 5
	DefaultSuccessThreshold = 2
	DefaultBreakerCooldown  = 10 * time.Second
)

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker. Default: 5.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive half-open successes
	// that closes the breaker. Default: 2.
	SuccessThreshold int

	// Cooldown is how long the breaker stays open before probing again.
	// Default: 10s.
	Cooldown time.Duration

	// IsFailure decides whether an error counts against the breaker. A
	// nil IsFailure uses the same classification as the retry loop.
	IsFailure func(error) bool

	// OnStateChange, when set, observes every state transition.
	OnStateChange func(from, to BreakerState)
}

// Breaker suspends calls to a service that keeps failing. Closed is
// normal operation; FailureThreshold consecutive failures open it; after
// Cooldown it admits probe calls, and SuccessThreshold consecutive
// successes close it again. Safe for concurrent use.
type Breaker struct {
	mu  sync.Mutex
	cfg BreakerConfig

	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
}

// NewBreaker creates a breaker. Zero config fields take defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = DefaultSuccessThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultBreakerCooldown
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = defaultIsRetryable
	}
	return &Breaker{cfg: cfg, state: StateClosed}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do runs fn under breaker protection. An open breaker rejects the call
// with code Unavailable wrapping ErrBreakerOpen; otherwise fn's error is
// returned as is and recorded.
func (b *Breaker) Do(fn func() error) error {
	if !b.admit() {
		return connect.NewError(connect.CodeUnavailable, ErrBreakerOpen)
	}
	err := fn()
	b.record(err)
	return err
}

// admit reports whether a call may proceed, moving an expired open
// breaker to half-open.
func (b *Breaker) admit() bool {
	b.mu.Lock()

	switch b.state {
	case StateOpen:
		if time.Since(b.openedAt) < b.cfg.Cooldown {
			b.mu.Unlock()
			return false
		}
		notify := b.transition(StateHalfOpen)
		b.mu.Unlock()
		notify()
		return true
	default:
		b.mu.Unlock()
		return true
	}
}

// record folds a call result into the state machine.
func (b *Breaker) record(err error) {
	b.mu.Lock()

	failed := b.cfg.IsFailure(err)
	notify := func() {}

	switch b.state {
	case StateClosed:
		if failed {
			b.failures++
			b.successes = 0
			if b.failures >= b.cfg.FailureThreshold {
				b.openedAt = time.Now()
				notify = b.transition(StateOpen)
			}
		} else {
			b.failures = 0
		}

	case StateHalfOpen:
		if failed {
			b.openedAt = time.Now()
			notify = b.transition(StateOpen)
		} else {
			b.successes++
			if b.successes >= b.cfg.SuccessThreshold {
				notify = b.transition(StateClosed)
			}
		}

	case StateOpen:
		// A straggler admitted before the flip; keep the breaker open.
		if failed {
			b.openedAt = time.Now()
		}
	}

	b.mu.Unlock()
	notify()
}

// transition switches state and returns the callback to fire once the
// lock is released. Caller must hold b.mu.
func (b *Breaker) transition(to BreakerState) func() {
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0

	if b.cfg.OnStateChange == nil || from == to {
		return func() {}
	}
	return func() { b.cfg.OnStateChange(from, to) }
}

// BreakerInterceptor returns a Connect unary interceptor that runs every
// call through b. Place it outside the escalation interceptor so one
// budgeted call counts once, however many attempts it took.
func BreakerInterceptor(b *Breaker) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			var resp connect.AnyResponse
			err := b.Do(func() error {
				var callErr error
				resp, callErr = next(ctx, req)
				return callErr
			})
			if err != nil {
				return nil, err
			}
			return resp, nil
		}
	}
}
