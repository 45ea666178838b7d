package connectclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"connectrpc.com/connect"
)

// Bucket janitor cadence and idle eviction age.
const (
	bucketSweepInterval = time.Minute
	bucketIdleAge       = 5 * time.Minute
)

// Rate describes a token bucket: sustained calls per second plus burst
// headroom.
type Rate struct {
	PerSecond float64
	Burst     int
}

// TokenBucketLimiter meters calls with one token bucket per key. Buckets
// refill continuously at the configured rate and idle buckets are swept
// in the background. Close stops the sweeper.
type TokenBucketLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	stop    chan struct{}
	stopped bool
}

type bucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	refill   float64
	last     time.Time
}

// NewTokenBucketLimiter creates a limiter and starts its sweeper.
func NewTokenBucketLimiter() *TokenBucketLimiter {
	l := &TokenBucketLimiter{
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Allow reports whether one more call for key fits under limit.
func (l *TokenBucketLimiter) Allow(key string, limit Rate) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{
			tokens:   float64(limit.Burst),
			capacity: float64(limit.Burst),
			refill:   limit.PerSecond,
			last:     time.Now(),
		}
		l.buckets[key] = b
	}
	l.mu.Unlock()

	return b.take(limit)
}

// Close stops the sweeper. Close is safe to call multiple times.
func (l *TokenBucketLimiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.stopped {
		close(l.stop)
		l.stopped = true
	}
}

func (l *TokenBucketLimiter) sweep() {
	ticker := time.NewTicker(bucketSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.evictIdle()
		}
	}
}

func (l *TokenBucketLimiter) evictIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-bucketIdleAge)
	for key, b := range l.buckets {
		b.mu.Lock()
		if b.last.Before(cutoff) {
			delete(l.buckets, key)
		}
		b.mu.Unlock()
	}
}

// take refills the bucket for elapsed time and removes one token if
// available.
func (b *bucket) take(limit Rate) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Track limit changes so callers can tighten a live bucket.
	if b.capacity != float64(limit.Burst) || b.refill != limit.PerSecond {
		b.capacity = float64(limit.Burst)
		b.refill = limit.PerSecond
	}

	now := time.Now()
	b.tokens += now.Sub(b.last).Seconds() * b.refill
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.last = now

	if b.tokens >= 1.0 {
		b.tokens--
		return true
	}
	return false
}

// ProcedureKey keys throttling by RPC procedure, so each method gets its
// own bucket.
func ProcedureKey(req connect.AnyRequest) string {
	return req.Spec().Procedure
}

// ThrottleInterceptor returns a Connect unary interceptor that rejects
// calls locally once the bucket for the extracted key is empty. Rejected
// calls fail with code ResourceExhausted wrapping ErrThrottled and never
// reach the wire. Place it outside the breaker and escalation
// interceptors so local rejections neither trip the breaker nor consume
// retry attempts.
func ThrottleInterceptor(limiter *TokenBucketLimiter, key func(connect.AnyRequest) string, limit Rate) connect.UnaryInterceptorFunc {
	if key == nil {
		key = ProcedureKey
	}
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			k := key(req)
			if !limiter.Allow(k, limit) {
				return nil, connect.NewError(
					connect.CodeResourceExhausted,
					fmt.Errorf("%w: %s", ErrThrottled, k),
				)
			}
			return next(ctx, req)
		}
	}
}
