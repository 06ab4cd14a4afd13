package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/asoc-io/asoc/internal/identity"
	"github.com/asoc-io/asoc/internal/protocol"
	"github.com/asoc-io/asoc/internal/streaming"
	"golang.org/x/sync/errgroup"
)

// Session is one authenticated transport association with a remote peer
// (spec.md §3). It owns the transport, the outbound send queue, and a
// streaming.Engine; it never exposes the engine to anything outside this
// package except through the narrow streaming.Sender interface it
// implements.
type Session struct {
	cfg       Config
	conn      net.Conn
	peerID    identity.NodeID
	initiator bool
	token     [protocol.SessionTokenSize]byte
	logger    *slog.Logger
	callbacks Callbacks

	engine   *streaming.Engine
	outbound chan streaming.Frame

	mu       sync.Mutex
	state    State
	closeErr error

	closeOnce sync.Once
	closed    chan struct{}
}

func newSession(conn net.Conn, peerID identity.NodeID, initiator bool, token [protocol.SessionTokenSize]byte, cfg Config, cb Callbacks, logger *slog.Logger) *Session {
	s := &Session{
		cfg:       cfg,
		conn:      conn,
		peerID:    peerID,
		initiator: initiator,
		token:     token,
		logger:    logger,
		callbacks: cb,
		outbound:  make(chan streaming.Frame, 32),
		closed:    make(chan struct{}),
		state:     StateEstablished,
	}
	s.engine = streaming.NewEngine(peerID, initiator, s, func(peer identity.NodeID, r *streaming.Reader) {
		if cb.OnStream != nil {
			cb.OnStream(peer, r)
		}
	})
	return s
}

// PeerID returns the remote node's identity.
func (s *Session) PeerID() identity.NodeID {
	return s.peerID
}

// State returns the session's current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EnqueueOutbound implements streaming.Sender. It blocks until the
// frame has been handed to the writer loop's queue, or the session is
// closed first.
func (s *Session) EnqueueOutbound(f streaming.Frame) error {
	select {
	case s.outbound <- f:
		return nil
	case <-s.closed:
		return ErrClosed
	}
}

// Stream hands payload to the streaming engine for chunked delivery. A
// zero opts.ChunkSize uses the session's configured ChunkSize.
func (s *Session) Stream(ctx context.Context, payload []byte, opts streaming.StreamOpts) (*streaming.StreamHandle, error) {
	if s.State() != StateEstablished {
		return nil, ErrClosed
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = s.cfg.ChunkSize
	}
	return s.engine.Stream(ctx, payload, opts)
}

// Run drives the session until either loop fails or ctx is cancelled,
// then tears the session down and reports the terminal error. It
// returns when the session has fully closed.
func (s *Session) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return s.writerLoop(egCtx) })
	eg.Go(func() error { return s.readerLoop(egCtx) })

	err := eg.Wait()
	s.closeWith(err)
	return err
}

func (s *Session) writerLoop(ctx context.Context) error {
	for {
		select {
		case f, ok := <-s.outbound:
			if !ok {
				return nil
			}
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.SendDrainTimeout)); err != nil {
				return err
			}
			if err := writeFrame(s.conn, f); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) readerLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
			return err
		}

		f, err := readFrame(s.conn, s.cfg.MaxFrameBytes)
		if err != nil {
			return err
		}

		if f.StreamID == protocol.HandshakeStreamID {
			return ErrProtocolViolation
		}
		if f.Type != protocol.FrameData && f.Type != protocol.FrameEnd {
			// Any other type on an established session is dropped
			// silently (spec.md §4.1).
			continue
		}

		if err := s.engine.HandleInbound(f); err != nil {
			// Any streaming-layer violation (sequence gap, bad parity,
			// stream id reuse) is session-fatal; surface it uniformly as
			// ErrProtocolViolation (spec.md §7) while keeping the
			// specific cause wrapped for diagnostics.
			return fmt.Errorf("%w: %s", ErrProtocolViolation, err)
		}
	}
}

// closeWith tears the session down exactly once: closes the transport,
// aborts every in-flight inbound stream, and notifies OnPeerDown.
func (s *Session) closeWith(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.closeErr = err
		s.mu.Unlock()

		close(s.closed)
		_ = s.conn.Close()
		s.engine.Abort(err)

		if s.logger != nil {
			s.logger.Info("session closed", "peer", s.peerID.Short(), "reason", err)
		}
		if s.callbacks.OnPeerDown != nil {
			s.callbacks.OnPeerDown(s.peerID, err)
		}
	})
}

// Close tears the session down with no specific error, as if the local
// side initiated the shutdown.
func (s *Session) Close() error {
	s.closeWith(nil)
	return nil
}
