package connectclient

import "errors"

// Common errors returned by connect-client operations.
var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownKind is returned when a factory kind cannot be resolved.
	ErrUnknownKind = errors.New("unknown executor factory kind")

	// ErrDuplicateKind is returned when registering a factory kind that
	// is already registered.
	ErrDuplicateKind = errors.New("executor factory kind already registered")

	// ErrNoFactories is returned by discovery when no factories are registered.
	ErrNoFactories = errors.New("no executor factories registered")

	// ErrNotAcquired is returned when releasing a resource kind that has
	// no outstanding acquisition.
	ErrNotAcquired = errors.New("release without matching acquire")

	// ErrWrongInstance is returned when releasing an instance that is not
	// the one held for its resource kind.
	ErrWrongInstance = errors.New("instance does not belong to resource kind")

	// ErrExecutorStopped is returned when submitting to a closed executor.
	ErrExecutorStopped = errors.New("executor is stopped")

	// ErrChannelClosed is returned when operating on a closed channel.
	ErrChannelClosed = errors.New("channel is closed")

	// ErrBreakerOpen is returned when a circuit breaker rejects a call.
	ErrBreakerOpen = errors.New("circuit breaker open")

	// ErrThrottled is returned when the local rate limit rejects a call.
	ErrThrottled = errors.New("local rate limit exceeded")
)
