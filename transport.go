package connectclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"connectrpc.com/connect"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/emptypb"
)

// DefaultMaxAttempts is the attempt budget used by the escalation
// interceptor (1 = no retries).
const DefaultMaxAttempts = 3

// defaultIsRetryable determines if an error is worth another attempt.
// Retries: unavailable, resource exhausted, internal, unknown, deadline exceeded
// Does not retry: invalid argument, not found, permission denied, cancelled
func defaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch connect.CodeOf(err) {
	case connect.CodeUnavailable,
		connect.CodeResourceExhausted,
		connect.CodeInternal,
		connect.CodeUnknown,
		connect.CodeDeadlineExceeded:
		return true
	default:
		return false
	}
}

// TimeoutEscalationInterceptor returns a Connect unary interceptor that
// owns the retry loop for a call. Each attempt runs under its own context
// deadline computed by the policy: attempt 0 under TimeoutFor(0), attempt
// k under TimeoutFor(k). Failed retryable attempts are retried
// immediately under the next, longer deadline, up to maxAttempts;
// escalation governs the per-attempt deadline, not inter-attempt delay.
//
// maxAttempts <= 0 means DefaultMaxAttempts. A nil isRetryable uses the
// default retryability (Unavailable, ResourceExhausted, Internal,
// Unknown, DeadlineExceeded).
func TimeoutEscalationInterceptor(policy RetryTimeoutPolicy, maxAttempts int, isRetryable func(error) bool) connect.UnaryInterceptorFunc {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if isRetryable == nil {
		isRetryable = defaultIsRetryable
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			var lastErr error

			for attempt := 0; attempt < maxAttempts; attempt++ {
				// Stop when the parent context is done
				if ctx.Err() != nil {
					if lastErr != nil {
						return nil, lastErr
					}
					return nil, ctx.Err()
				}

				attemptCtx, cancel := context.WithTimeout(ctx, policy.TimeoutFor(attempt))
				resp, err := next(attemptCtx, req)
				cancel()
				if err == nil {
					return resp, nil
				}

				lastErr = err

				// Don't retry if not retryable
				if !isRetryable(err) {
					return nil, err
				}
			}

			return nil, lastErr
		}
	}
}

// userAgentInterceptor stamps outgoing requests with the configured
// User-Agent value.
func userAgentInterceptor(userAgent string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			req.Header().Set("User-Agent", userAgent)
			return next(ctx, req)
		}
	}
}

// Channel binds a ServiceOptions to a live transport: an HTTP client, an
// executor obtained from the options' factory, and the interceptor chain
// connect clients should carry. Close releases the executor back to the
// factory.
type Channel struct {
	mu     sync.Mutex
	closed bool

	opts        *ServiceOptions
	httpClient  *http.Client
	executor    Executor
	maxAttempts int
	isRetryable func(error) bool
	breaker     *Breaker
	limiter     *TokenBucketLimiter
	rate        Rate
	logger      *zap.Logger
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithHTTPClient sets the HTTP client used for calls. Default:
// http.DefaultClient. In-process transports supply their client here.
func WithHTTPClient(client *http.Client) ChannelOption {
	return func(c *Channel) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMaxAttempts sets the attempt budget for the escalation interceptor.
func WithMaxAttempts(n int) ChannelOption {
	return func(c *Channel) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithIsRetryable overrides which errors the escalation interceptor
// retries.
func WithIsRetryable(fn func(error) bool) ChannelOption {
	return func(c *Channel) {
		if fn != nil {
			c.isRetryable = fn
		}
	}
}

// WithBreaker runs every call through b. Pass the same breaker to
// several channels to share its view of a service's health.
func WithBreaker(b *Breaker) ChannelOption {
	return func(c *Channel) {
		if b != nil {
			c.breaker = b
		}
	}
}

// WithRateLimit throttles calls locally, per procedure, at the given
// rate. The channel owns the limiter and stops it on Close.
func WithRateLimit(rate Rate) ChannelOption {
	return func(c *Channel) {
		if rate.PerSecond > 0 && rate.Burst > 0 {
			c.rate = rate
		}
	}
}

// WithChannelLogger sets the logger for channel lifecycle events.
func WithChannelLogger(logger *zap.Logger) ChannelOption {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChannel validates the options' endpoint, obtains an executor from
// the options' factory, and returns a live channel. The caller owns the
// channel and must Close it so the executor is released.
func NewChannel(opts *ServiceOptions, copts ...ChannelOption) (*Channel, error) {
	if opts == nil {
		return nil, fmt.Errorf("%w: options are required", ErrInvalidConfig)
	}
	if err := ValidateEndpoint(opts.Endpoint()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	c := &Channel{
		opts:        opts,
		httpClient:  http.DefaultClient,
		maxAttempts: DefaultMaxAttempts,
		logger:      zap.NewNop(),
	}
	for _, opt := range copts {
		opt(c)
	}

	executor, err := opts.ExecutorFactory().Get()
	if err != nil {
		return nil, fmt.Errorf("get executor: %w", err)
	}
	c.executor = executor

	// The limiter starts a sweeper goroutine, so it is created only once
	// construction can no longer fail.
	if c.rate.PerSecond > 0 {
		c.limiter = NewTokenBucketLimiter()
	}

	c.logger.Info("channel opened",
		zap.String("endpoint", opts.Endpoint()),
		zap.String("factory_kind", opts.FactoryKind()))
	return c, nil
}

// Executor returns the executor the channel holds.
func (c *Channel) Executor() Executor {
	return c.executor
}

// HTTPClient returns the HTTP client connect clients should use.
func (c *Channel) HTTPClient() *http.Client {
	return c.httpClient
}

// BaseURL returns the endpoint calls are issued against.
func (c *Channel) BaseURL() string {
	return c.opts.Endpoint()
}

// Options returns the options the channel was built from.
func (c *Channel) Options() *ServiceOptions {
	return c.opts
}

// ClientOptions returns the connect client options for this channel.
// Outermost to innermost: the local throttle (rejections never reach the
// breaker), the circuit breaker (one budgeted call counts once), the
// escalating-deadline interceptor, the user agent, and the credential
// interceptor.
func (c *Channel) ClientOptions() []connect.ClientOption {
	var interceptors []connect.Interceptor
	if c.limiter != nil {
		interceptors = append(interceptors, ThrottleInterceptor(c.limiter, ProcedureKey, c.rate))
	}
	if c.breaker != nil {
		interceptors = append(interceptors, BreakerInterceptor(c.breaker))
	}
	interceptors = append(interceptors,
		TimeoutEscalationInterceptor(c.opts.TimeoutPolicy(), c.maxAttempts, c.isRetryable))
	if ua := c.opts.UserAgent(); ua != "" {
		interceptors = append(interceptors, userAgentInterceptor(ua))
	}
	if creds := c.opts.Credentials(); creds != nil {
		interceptors = append(interceptors, creds.ClientInterceptor())
	}
	return []connect.ClientOption{connect.WithInterceptors(interceptors...)}
}

// Probe issues an empty-message unary call against procedure (for
// example "/health.v1.Health/Check") through the channel's interceptor
// chain. It reports reachability of services exposing an empty-request,
// empty-response procedure.
func (c *Channel) Probe(ctx context.Context, procedure string) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrChannelClosed
	}

	if !strings.HasPrefix(procedure, "/") {
		return fmt.Errorf("%w: procedure must start with /: %s", ErrInvalidConfig, procedure)
	}

	client := connect.NewClient[emptypb.Empty, emptypb.Empty](
		c.httpClient,
		c.opts.Endpoint()+procedure,
		c.ClientOptions()...,
	)
	_, err := client.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	return err
}

// Close releases the executor back to the factory. Close is safe to call
// multiple times; only the first call releases.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.limiter != nil {
		c.limiter.Close()
	}
	if err := c.opts.ExecutorFactory().Release(c.executor); err != nil {
		return fmt.Errorf("release executor: %w", err)
	}

	c.logger.Info("channel closed", zap.String("endpoint", c.opts.Endpoint()))
	return nil
}
