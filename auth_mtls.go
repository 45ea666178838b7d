package connectclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
)

// MTLSCredentials carry a client certificate for mutual TLS. Unlike
// token credentials, mTLS lives at the transport level: build the HTTP
// client with HTTPClient and hand it to NewChannel via WithHTTPClient.
// The per-request interceptor adds nothing.
type MTLSCredentials struct {
	// ClientCert is presented to the server during the TLS handshake.
	ClientCert *tls.Certificate

	// RootCAs verifies the server certificate. Nil means the system pool.
	RootCAs *x509.CertPool
}

var _ Credentials = (*MTLSCredentials)(nil)

// NewMTLSCredentials creates mutual TLS credentials.
func NewMTLSCredentials(clientCert *tls.Certificate, rootCAs *x509.CertPool) *MTLSCredentials {
	return &MTLSCredentials{
		ClientCert: clientCert,
		RootCAs:    rootCAs,
	}
}

// Name returns "mtls".
func (m *MTLSCredentials) Name() string {
	return "mtls"
}

// ClientInterceptor returns a passthrough interceptor. The credential
// takes effect through the TLS-configured HTTP client, not per request.
func (m *MTLSCredentials) ClientInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			return next(ctx, req)
		}
	}
}

// HTTPClient builds an *http.Client that presents the client certificate
// and verifies servers against RootCAs.
func (m *MTLSCredentials) HTTPClient() (*http.Client, error) {
	if m.ClientCert == nil {
		return nil, fmt.Errorf("%w: client certificate required for mTLS", ErrInvalidConfig)
	}

	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				Certificates: []tls.Certificate{*m.ClientCert},
				RootCAs:      m.RootCAs,
				MinVersion:   tls.VersionTLS12,
			},
		},
	}, nil
}
