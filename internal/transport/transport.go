// Package transport wraps the raw TCP dial/listen surface a session is
// built on. It knows nothing about frames, handshakes, or streams — it
// is exactly the "transport handles" spec.md §3 says a Session holds.
package transport

import (
	"context"
	"net"
)

// Transport owns a TCP listener and dials outbound connections on behalf
// of the connection component (spec.md §4.3).
type Transport struct {
	listener net.Listener
}

// NewTransport binds addr (":0" picks an ephemeral port, matching the
// teacher's test harness convention).
func NewTransport(addr string) (*Transport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Transport{listener: ln}, nil
}

// LocalAddr returns the bound listen address.
func (t *Transport) LocalAddr() net.Addr {
	return t.listener.Addr()
}

// Close releases the listener. Safe to call once.
func (t *Transport) Close() error {
	return t.listener.Close()
}

// Accept blocks for the next inbound TCP connection, honoring ctx
// cancellation by racing the accept against ctx.Done in a goroutine.
func (t *Transport) Accept(ctx context.Context) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := t.listener.Accept()
		ch <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.conn, r.err
	}
}

// Dial opens a TCP connection to addr, honoring ctx's deadline.
func (t *Transport) Dial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}
