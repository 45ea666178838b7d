package connectclient

import (
	"context"

	"connectrpc.com/connect"
)

// Credentials attach authentication to outgoing client requests.
// Implementations include bearer tokens and API keys. Credentials are
// never persisted in snapshots; re-supply them after rehydration.
type Credentials interface {
	// Name identifies the credential mechanism ("token", "api-key", ...).
	Name() string

	// ClientInterceptor returns an interceptor that adds the credentials
	// to outgoing requests.
	ClientInterceptor() connect.UnaryInterceptorFunc
}

// TokenCredentials implements token-based credentials (Bearer tokens).
type TokenCredentials struct {
	// Token to send with client requests.
	Token string

	// Header is the header name for the token.
	// Default: "Authorization"
	Header string

	// Prefix is the token prefix (e.g., "Bearer ").
	// Default: "Bearer "
	Prefix string
}

var _ Credentials = (*TokenCredentials)(nil)

// NewTokenCredentials creates bearer token credentials.
func NewTokenCredentials(token string) *TokenCredentials {
	return &TokenCredentials{
		Token:  token,
		Header: "Authorization",
		Prefix: "Bearer ",
	}
}

// Name returns "token".
func (t *TokenCredentials) Name() string {
	return "token"
}

// ClientInterceptor returns an interceptor that adds the token to
// outgoing requests.
func (t *TokenCredentials) ClientInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if t.Token != "" {
				req.Header().Set(t.Header, t.Prefix+t.Token)
			}
			return next(ctx, req)
		}
	}
}

// APIKeyCredentials are simplified token credentials for API keys
// (no "Bearer " prefix).
type APIKeyCredentials struct {
	*TokenCredentials
}

// NewAPIKeyCredentials creates API key credentials.
// Uses the X-API-Key header with no prefix.
func NewAPIKeyCredentials(apiKey string) *APIKeyCredentials {
	return &APIKeyCredentials{
		TokenCredentials: &TokenCredentials{
			Token:  apiKey,
			Header: "X-API-Key",
			Prefix: "", // No prefix for API keys
		},
	}
}

// Name returns "api-key".
func (a *APIKeyCredentials) Name() string {
	return "api-key"
}

// ComposeCredentials chains multiple credentials for the client.
// Each credential's interceptor is applied in order.
func ComposeCredentials(creds ...Credentials) connect.UnaryInterceptorFunc {
	if len(creds) == 0 {
		return func(next connect.UnaryFunc) connect.UnaryFunc {
			return next
		}
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		// Apply interceptors in reverse order (last credential wraps innermost)
		for i := len(creds) - 1; i >= 0; i-- {
			next = creds[i].ClientInterceptor()(next)
		}
		return next
	}
}
