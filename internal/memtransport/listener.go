// Package memtransport provides an in-memory net.Listener and HTTP
// transport over net.Pipe(), letting Connect clients and servers talk
// within one process with no TCP or Unix sockets. The channel and fx
// tests run entirely on it.
//
// Usage:
//
//	ln := memtransport.New()
//
//	// Server side
//	srv := &http.Server{Handler: myHandler}
//	go srv.Serve(ln)
//
//	// Client side: a channel dials through ln.HTTPClient()
//	channel, err := connectclient.NewChannel(opts,
//	    connectclient.WithHTTPClient(ln.HTTPClient()))
//
//	// Cleanup
//	srv.Shutdown(ctx)
//	ln.Close()
package memtransport

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"sync"
)

// connBacklog is how many dialed connections may wait for Accept.
const connBacklog = 16

var errListenerClosed = errors.New("memtransport: listener closed")

// Listener is an in-memory net.Listener backed by net.Pipe(). Each
// DialContext call creates a pipe pair: one end goes to the dialer, the
// other is handed to Accept.
type Listener struct {
	conns  chan net.Conn
	once   sync.Once
	closed chan struct{}
}

// New creates an in-memory listener ready for use.
func New() *Listener {
	return &Listener{
		conns:  make(chan net.Conn, connBacklog),
		closed: make(chan struct{}),
	}
}

// Accept waits for and returns the next connection (the server side of a
// pipe). It blocks until a client dials or the listener is closed.
func (l *Listener) Accept() (net.Conn, error) {
	select {
	case conn, ok := <-l.conns:
		if !ok {
			return nil, errListenerClosed
		}
		return conn, nil
	case <-l.closed:
		return nil, errListenerClosed
	}
}

// Close stops the listener. Blocked Accept calls return an error. Close
// is safe to call multiple times.
func (l *Listener) Close() error {
	l.once.Do(func() {
		close(l.closed)
	})
	return nil
}

// Addr returns a placeholder address for the in-memory listener.
func (l *Listener) Addr() net.Addr {
	return pipeAddr{}
}

// DialContext creates a new in-memory connection pair. The server end is
// queued for Accept; the client end is returned. Intended for use as
// http.Transport.DialContext.
func (l *Listener) DialContext(ctx context.Context, _, _ string) (net.Conn, error) {
	select {
	case <-l.closed:
		return nil, errListenerClosed
	default:
	}

	serverConn, clientConn := net.Pipe()

	select {
	case l.conns <- serverConn:
		return clientConn, nil
	case <-l.closed:
		serverConn.Close()
		clientConn.Close()
		return nil, errListenerClosed
	case <-ctx.Done():
		serverConn.Close()
		clientConn.Close()
		return nil, ctx.Err()
	}
}

// Transport returns an *http.Transport that dials through this listener.
// HTTP/1.1 only: net.Pipe carries no TLS, so there is no h2 negotiation.
func (l *Listener) Transport() *http.Transport {
	return &http.Transport{
		DialContext:       l.DialContext,
		ForceAttemptHTTP2: false,
		// In-memory, nothing to verify.
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
}

// HTTPClient returns an *http.Client that dials through this listener.
// Pass it to NewChannel via WithHTTPClient, or directly to a connect
// client constructor.
func (l *Listener) HTTPClient() *http.Client {
	return &http.Client{
		Transport: l.Transport(),
	}
}

// pipeAddr is the placeholder net.Addr for in-memory listeners.
type pipeAddr struct{}

func (pipeAddr) Network() string { return "mem" }
func (pipeAddr) String() string  { return "mem://in-process" }
