package transport

import (
	"context"
	"testing"
	"time"
)

func TestTransportCreateAndClose(t *testing.T) {
	tr, err := NewTransport(":0")
	if err != nil {
		t.Fatalf("NewTransport failed: %v", err)
	}
	defer func() { _ = tr.Close() }()

	if tr.LocalAddr() == nil {
		t.Error("expected non-nil local address")
	}
}

func TestTransportDialAccept(t *testing.T) {
	server, err := NewTransport(":0")
	if err != nil {
		t.Fatalf("NewTransport server failed: %v", err)
	}
	defer func() { _ = server.Close() }()

	client, err := NewTransport(":0")
	if err != nil {
		t.Fatalf("NewTransport client failed: %v", err)
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type acceptResult struct{ err error }
	accepted := make(chan acceptResult, 1)
	go func() {
		conn, err := server.Accept(ctx)
		if err == nil {
			_ = conn.Close()
		}
		accepted <- acceptResult{err}
	}()

	clientConn, err := client.Dial(ctx, server.LocalAddr().String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer func() { _ = clientConn.Close() }()

	select {
	case r := <-accepted:
		if r.err != nil {
			t.Fatalf("accept failed: %v", r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("accept did not complete in time")
	}
}

func TestTransportAcceptRespectsContext(t *testing.T) {
	tr, err := NewTransport(":0")
	if err != nil {
		t.Fatalf("NewTransport failed: %v", err)
	}
	defer func() { _ = tr.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := tr.Accept(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}
