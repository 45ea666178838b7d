package connectclient

import (
	"fmt"
	"time"
)

// Default retry timeout parameters, used by NewBuilder and
// DefaultRetryTimeoutPolicy.
const (
	// DefaultInitialTimeout is the timeout applied to the first attempt.
	DefaultInitialTimeout = 20 * time.Second

	// DefaultTimeoutMultiplier is the per-attempt growth factor.
	DefaultTimeoutMultiplier = 1.5

	// DefaultMaxTimeout is the ceiling for per-attempt timeouts.
	DefaultMaxTimeout = 100 * time.Second
)

// RetryTimeoutPolicy computes the timeout to apply to each attempt of a
// retried call. The timeout grows geometrically from the initial timeout
// and saturates at the max timeout.
//
// A policy is an immutable value. It holds no attempt history: callers
// track the attempt index and the policy maps it to a timeout. The actual
// retry loop belongs to the transport layer (see
// TimeoutEscalationInterceptor).
type RetryTimeoutPolicy struct {
	initial    time.Duration
	multiplier float64
	max        time.Duration
}

// NewRetryTimeoutPolicy validates the triple and returns a policy.
//
// initial must be > 0 and multiplier must be >= 1.0 (NaN is rejected);
// violations are reported as errors wrapping ErrInvalidConfig. A max below
// initial is not an error: it is clamped up to initial, and MaxTimeout
// reflects the clamp.
func NewRetryTimeoutPolicy(initial time.Duration, multiplier float64, max time.Duration) (RetryTimeoutPolicy, error) {
	if initial <= 0 {
		return RetryTimeoutPolicy{}, fmt.Errorf("%w: initial timeout must be > 0, got %v", ErrInvalidConfig, initial)
	}
	// The inverted form also rejects NaN.
	if !(multiplier >= 1.0) {
		return RetryTimeoutPolicy{}, fmt.Errorf("%w: timeout multiplier must be >= 1, got %v", ErrInvalidConfig, multiplier)
	}
	if max < initial {
		max = initial
	}
	return RetryTimeoutPolicy{initial: initial, multiplier: multiplier, max: max}, nil
}

// DefaultRetryTimeoutPolicy returns a policy with the default triple
// (20s initial, 1.5 multiplier, 100s max).
func DefaultRetryTimeoutPolicy() RetryTimeoutPolicy {
	p, _ := NewRetryTimeoutPolicy(DefaultInitialTimeout, DefaultTimeoutMultiplier, DefaultMaxTimeout)
	return p
}

// InitialTimeout returns the timeout applied to attempt 0.
func (p RetryTimeoutPolicy) InitialTimeout() time.Duration { return p.initial }

// Multiplier returns the per-attempt growth factor.
func (p RetryTimeoutPolicy) Multiplier() float64 { return p.multiplier }

// MaxTimeout returns the effective ceiling. If the policy was constructed
// with a max below the initial timeout, this reflects the clamped value.
func (p RetryTimeoutPolicy) MaxTimeout() time.Duration { return p.max }

// TimeoutFor returns the timeout for the given zero-based attempt index.
// Attempt 0 uses the initial timeout; attempt k uses
// min(MaxTimeout, TimeoutFor(k-1) * Multiplier). The sequence is
// non-decreasing and bounded by MaxTimeout. Negative attempt indexes are
// treated as attempt 0.
func (p RetryTimeoutPolicy) TimeoutFor(attempt int) time.Duration {
	timeout := p.initial
	for i := 0; i < attempt; i++ {
		// The product can leave the Duration range; saturate in float
		// space before converting.
		grown := float64(timeout) * p.multiplier
		if grown >= float64(p.max) {
			return p.max
		}
		next := time.Duration(grown)
		if next <= timeout {
			// Saturated: a multiplier of 1.0 never grows.
			return timeout
		}
		timeout = next
	}
	return timeout
}
