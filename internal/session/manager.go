package session

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/asoc-io/asoc/internal/identity"
	"github.com/asoc-io/asoc/internal/transport"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Manager keeps at most one authenticated session per remote node id
// (spec.md §4.3's top-level responsibility). It owns the listening
// transport, runs the accept loop, and drives the static-peer
// reconnection policy.
type Manager struct {
	cfg       Config
	transport *transport.Transport
	callbacks Callbacks
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[identity.NodeID]*Session
	wg       sync.WaitGroup
}

// NewManager constructs a Manager bound to tr. Call Start to begin
// accepting inbound connections and dialing static peers.
func NewManager(cfg Config, tr *transport.Transport, cb Callbacks, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		transport: tr,
		callbacks: cb,
		logger:    logger,
		sessions:  make(map[identity.NodeID]*Session),
	}
}

// Snapshot returns the node ids of every currently established session.
func (m *Manager) Snapshot() []identity.NodeID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]identity.NodeID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Get returns the established session for peerID, if any.
func (m *Manager) Get(peerID identity.NodeID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[peerID]
	return s, ok
}

func (m *Manager) isDuplicate(peerID identity.NodeID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.sessions[peerID]
	return exists
}

func (m *Manager) register(s *Session) bool {
	m.mu.Lock()
	if _, exists := m.sessions[s.peerID]; exists {
		m.mu.Unlock()
		return false
	}
	m.sessions[s.peerID] = s
	m.mu.Unlock()
	return true
}

func (m *Manager) unregister(peerID identity.NodeID, s *Session) {
	m.mu.Lock()
	if cur, ok := m.sessions[peerID]; ok && cur == s {
		delete(m.sessions, peerID)
	}
	m.mu.Unlock()
}

// Run starts the accept loop and, for every address in staticPeers,
// a reconnect-with-backoff loop. It blocks until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, staticPeers []string) error {
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error { return m.acceptLoop(egCtx) })

	for _, addr := range staticPeers {
		addr := addr
		eg.Go(func() error { return m.staticPeerLoop(egCtx, addr) })
	}

	err := eg.Wait()
	m.wg.Wait()
	return err
}

func (m *Manager) acceptLoop(ctx context.Context) error {
	for {
		conn, err := m.transport.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if m.logger != nil {
				m.logger.Warn("accept failed", "error", err)
			}
			continue
		}

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.handleAccepted(ctx, conn)
		}()
	}
}

func (m *Manager) handleAccepted(ctx context.Context, conn net.Conn) {
	peerID, token, err := acceptHandshake(conn, m.cfg, m.cfg.HandshakeTimeout, m.isDuplicate)
	if err != nil {
		if m.logger != nil {
			m.logger.Debug("handshake rejected", "error", err)
		}
		_ = conn.Close()
		return
	}

	sess := newSession(conn, peerID, false, token, m.cfg, m.callbacks, m.logger)
	if !m.register(sess) {
		_ = conn.Close()
		return
	}

	if m.logger != nil {
		m.logger.Info("peer connected", "peer", peerID.Short(), "role", "acceptor")
	}
	if m.callbacks.OnPeerUp != nil {
		m.callbacks.OnPeerUp(peerID, sess)
	}

	_ = sess.Run(ctx)
	m.unregister(peerID, sess)
}

// Dial opens a session to addr as the connection's initiator. peerID is
// the node id the caller expects to find there — known in advance from
// a discovery peer-table entry, or derived deterministically from the
// address for a purely static peer with no separately known id (see
// DESIGN.md).
func (m *Manager) Dial(ctx context.Context, addr string, peerID identity.NodeID) (*Session, error) {
	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	conn, err := m.transport.Dial(dialCtx, addr)
	if err != nil {
		return nil, err
	}

	token, err := initiateHandshake(conn, m.cfg, m.cfg.HandshakeTimeout)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	sess := newSession(conn, peerID, true, token, m.cfg, m.callbacks, m.logger)
	if !m.register(sess) {
		_ = conn.Close()
		return nil, ErrDuplicatePeer
	}

	return sess, nil
}

// RunSession drives sess to completion and unregisters it afterward.
// Callers that Dial a session themselves (the discovery-driven connect
// loop in the root package) use this instead of reimplementing the
// register/run/unregister pairing the accept loop and static-peer loop
// already do internally.
func (m *Manager) RunSession(ctx context.Context, sess *Session) error {
	err := sess.Run(ctx)
	m.unregister(sess.peerID, sess)
	return err
}

// DialDiscovered dials addr, fires OnPeerUp once established, and runs
// the session to completion. It is the discovery-driven counterpart to
// staticPeerLoop: the root package calls this once per peer-table entry
// it decides to connect to, applying its own bounded-retry policy
// around the call (spec.md §4.3 "For discovered peers, retry up to
// three times").
func (m *Manager) DialDiscovered(ctx context.Context, addr string, peerID identity.NodeID) error {
	sess, err := m.Dial(ctx, addr, peerID)
	if err != nil {
		return err
	}

	if m.logger != nil {
		m.logger.Info("peer connected", "peer", peerID.Short(), "addr", addr, "role", "initiator")
	}
	if m.callbacks.OnPeerUp != nil {
		m.callbacks.OnPeerUp(peerID, sess)
	}

	return m.RunSession(ctx, sess)
}

// staticPeerLoop keeps exactly one session alive to addr, reconnecting
// with exponential backoff whenever it drops (spec.md §4.3).
func (m *Manager) staticPeerLoop(ctx context.Context, addr string) error {
	peerID := StaticPeerID(addr)
	b := newBackoff()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		sess, err := m.Dial(ctx, addr, peerID)
		if err != nil {
			if m.logger != nil {
				m.logger.Debug("static peer dial failed", "addr", addr, "error", err)
			}
			select {
			case <-time.After(b.next()):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		b.reset()
		if m.logger != nil {
			m.logger.Info("peer connected", "peer", peerID.Short(), "addr", addr, "role", "initiator")
		}
		if m.callbacks.OnPeerUp != nil {
			m.callbacks.OnPeerUp(peerID, sess)
		}

		_ = sess.Run(ctx)
		m.unregister(peerID, sess)
	}
}

// StaticPeerID derives a stable node id for a static peer configured by
// address alone. The wire handshake gives only the acceptor a verified
// peer id (from HELLO); an initiator dialing a bare "host:port" with no
// separately known id has nothing else to key its session table on, so
// this produces a deterministic placeholder instead of the prototype's
// ad hoc "temp_host:port" string key (see DESIGN.md).
func StaticPeerID(addr string) identity.NodeID {
	return identity.FromUUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte("asoc-static-peer:"+addr)))
}
