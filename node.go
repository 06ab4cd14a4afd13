// Package asoc is the public API of the ASoc peer-to-peer tensor
// streaming protocol: zero-configuration local discovery, an
// HMAC-authenticated handshake, and a multiplexed, backpressured
// streaming engine over a single TCP session per peer (spec.md §6).
package asoc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/asoc-io/asoc/internal/discovery"
	"github.com/asoc-io/asoc/internal/identity"
	"github.com/asoc-io/asoc/internal/logger"
	"github.com/asoc-io/asoc/internal/session"
	"github.com/asoc-io/asoc/internal/streaming"
	"github.com/asoc-io/asoc/internal/transport"
	"github.com/dustin/go-humanize"
)

// discoveredPeerRetries bounds how many consecutive dial attempts a
// discovery-sourced peer gets before its record is evicted and the node
// waits for re-discovery (spec.md §4.3).
const discoveredPeerRetries = 3

// discoveredPeerRetryDelay spaces consecutive retries to a discovered
// peer. spec.md only bounds static-peer retries with the exponential
// backoff schedule; discovered-peer retries get a flat short delay
// since the peer is expected to be reachable soon (the same host that
// is still beaconing).
const discoveredPeerRetryDelay = time.Second

// Node is one participant in an ASoc cluster: it publishes and
// discovers presence, maintains at most one authenticated session per
// remote peer, and exposes the streaming API above those sessions
// (spec.md §6).
type Node struct {
	cfg     Config
	logger  *slog.Logger
	localID identity.NodeID

	transport *transport.Transport
	manager   *session.Manager
	disc      *discovery.Discovery

	mu         sync.Mutex
	onStream   func(identity.NodeID, *streaming.Reader)
	onPeerUp   func(identity.NodeID)
	onPeerDown func(identity.NodeID, error)

	dialing map[identity.NodeID]struct{}

	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

// NewNode constructs a Node from cfg, validating it and filling in
// unset options via Config.withDefaults (Port and EnableDiscovery are
// taken as given). The
// returned Node has not started any network activity yet; call Start.
func NewNode(cfg Config) (*Node, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var localID identity.NodeID
	if cfg.NodeID != "" {
		id, err := identity.Parse(cfg.NodeID)
		if err != nil {
			return nil, fmt.Errorf("asoc: invalid node_id: %w", err)
		}
		localID = id
	} else {
		localID = identity.New()
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewLogger()
	}

	return &Node{
		cfg:     cfg,
		logger:  log,
		localID: localID,
		dialing: make(map[identity.NodeID]struct{}),
	}, nil
}

// ID returns this node's identity, stable for the process lifetime.
func (n *Node) ID() identity.NodeID {
	return n.localID
}

// Addr returns the address this node's session transport is listening
// on, once Start has returned. Useful for wiring another node's
// StaticPeers to this one, e.g. in tests where Port is left as 0 to
// pick an ephemeral port.
func (n *Node) Addr() string {
	if n.transport == nil {
		return ""
	}
	return n.transport.LocalAddr().String()
}

// Start binds the session transport, then begins accepting inbound
// sessions, dialing static peers, and reacting to discovered ones. It
// returns once the listening transport is bound; the background loops
// keep running until Shutdown. The discovery socket, if enabled, is
// opened by the background discovery loop after Start returns; a
// failure to open it is logged, not returned.
func (n *Node) Start() error {
	n.mu.Lock()
	if n.started {
		n.mu.Unlock()
		return errors.New("asoc: already started")
	}
	n.started = true
	n.mu.Unlock()

	tr, err := transport.NewTransport(fmt.Sprintf(":%d", n.cfg.Port))
	if err != nil {
		return fmt.Errorf("asoc: bind session transport: %w", err)
	}
	n.transport = tr

	sessCfg := session.Config{
		Community:        n.cfg.Community,
		APIKey:           n.cfg.APIKey,
		LocalID:          n.localID,
		HandshakeTimeout: time.Duration(n.cfg.HandshakeTimeoutS) * time.Second,
		IdleTimeout:      time.Duration(n.cfg.IdleTimeoutS) * time.Second,
		ConnectTimeout:   time.Duration(n.cfg.HandshakeTimeoutS) * time.Second,
		SendDrainTimeout: 10 * time.Second,
		MaxFrameBytes:    n.cfg.MaxFrameBytes,
		ChunkSize:        n.cfg.ChunkSize,
	}

	n.manager = session.NewManager(sessCfg, tr, session.Callbacks{
		OnStream: func(peer identity.NodeID, r *streaming.Reader) {
			n.mu.Lock()
			cb := n.onStream
			n.mu.Unlock()
			if cb != nil {
				cb(peer, r)
			}
		},
		OnPeerUp: func(peer identity.NodeID, _ *session.Session) {
			n.mu.Lock()
			cb := n.onPeerUp
			n.mu.Unlock()
			if cb != nil {
				cb(peer)
			}
		},
		OnPeerDown: func(peer identity.NodeID, err error) {
			n.mu.Lock()
			cb := n.onPeerDown
			n.mu.Unlock()
			if cb != nil {
				cb(peer, err)
			}
		},
	}, n.logger)

	ctx, cancel := context.WithCancel(context.Background())
	n.ctx = ctx
	n.cancel = cancel

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.manager.Run(ctx, n.cfg.StaticPeers); err != nil && ctx.Err() == nil && n.logger != nil {
			n.logger.Error("session manager stopped", "error", err)
		}
	}()

	if n.cfg.EnableDiscovery {
		discCfg := discovery.DefaultConfig()
		discCfg.Community = n.cfg.Community
		discCfg.APIKey = n.cfg.APIKey
		discCfg.Port = uint16(n.cfg.Port)
		discCfg.DiscoveryPort = n.cfg.DiscoveryPort
		discCfg.BroadcastInterval = time.Duration(n.cfg.BroadcastIntervalS) * time.Second
		discCfg.PeerTTL = time.Duration(n.cfg.PeerTTLS) * time.Second

		n.disc = discovery.New(discCfg, n.localID, n.logger)
		n.disc.Subscribe(n.onDiscovered)

		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if err := n.disc.Run(ctx); err != nil && ctx.Err() == nil && n.logger != nil {
				n.logger.Error("discovery stopped", "error", err)
			}
		}()
	}

	n.logger.Info("node started", "node_id", n.localID.Short(), "community", n.cfg.Community,
		"port", n.cfg.Port, "discovery", n.cfg.EnableDiscovery)
	return nil
}

// onDiscovered is the discovery component's subscriber callback
// (spec.md §4.2 "the connection layer registers here to learn of newly
// seen peers"). It starts at most one dial attempt per peer at a time.
func (n *Node) onDiscovered(rec discovery.PeerRecord) {
	if rec.NodeID == n.localID {
		return
	}

	n.mu.Lock()
	if _, already := n.dialing[rec.NodeID]; already {
		n.mu.Unlock()
		return
	}
	if _, established := n.manager.Get(rec.NodeID); established {
		n.mu.Unlock()
		return
	}
	n.dialing[rec.NodeID] = struct{}{}
	n.mu.Unlock()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			n.mu.Lock()
			delete(n.dialing, rec.NodeID)
			n.mu.Unlock()
		}()
		n.dialDiscoveredPeer(rec)
	}()
}

// dialDiscoveredPeer makes up to discoveredPeerRetries attempts to
// establish a session with a peer learned from discovery, recording
// each failure on the peer table. The peer table itself evicts the
// record after its third consecutive failure (spec.md §4.3); when that
// happens this loop stops early rather than spinning against a record
// that no longer exists.
func (n *Node) dialDiscoveredPeer(rec discovery.PeerRecord) {
	addr := net.JoinHostPort(rec.Host, strconv.Itoa(int(rec.Port)))

	for attempt := 0; attempt < discoveredPeerRetries; attempt++ {
		if n.ctx.Err() != nil {
			return
		}

		err := n.manager.DialDiscovered(n.ctx, addr, rec.NodeID)
		if n.ctx.Err() != nil {
			return
		}
		if err == nil {
			// The session ran to completion and closed normally; a
			// fresh discovery datagram will trigger the next attempt.
			return
		}

		failures, evicted := n.disc.RecordFailure(rec.NodeID)
		n.logger.Debug("discovered peer dial failed", "peer", rec.NodeID.Short(), "addr", addr,
			"attempt", attempt+1, "failures", failures, "error", err)
		if evicted {
			n.logger.Info("peer evicted after repeated failures", "peer", rec.NodeID.Short())
			return
		}

		select {
		case <-time.After(discoveredPeerRetryDelay):
		case <-n.ctx.Done():
			return
		}
	}
}

// Peers returns the node ids of every currently established session.
func (n *Node) Peers() []identity.NodeID {
	if n.manager == nil {
		return nil
	}
	return n.manager.Snapshot()
}

// DiscoveredPeers returns the current discovery peer table, most
// recently seen first. Empty when discovery is disabled.
func (n *Node) DiscoveredPeers() []discovery.PeerRecord {
	if n.disc == nil {
		return nil
	}
	return n.disc.Snapshot()
}

// Stream enqueues payload for delivery to peerID over its established
// session, applying any StreamOptions. It fails synchronously with
// ErrNoSession if no session with peerID is currently established, and
// with ErrInvalidChunkSize if opts requests a chunk size outside
// spec.md §4.4's 4 KiB - 16 MiB range.
func (n *Node) Stream(ctx context.Context, peerID identity.NodeID, payload []byte, opts ...StreamOption) (*streaming.StreamHandle, error) {
	sopts := streaming.StreamOpts{}
	for _, o := range opts {
		o(&sopts)
	}
	if sopts.ChunkSize != 0 && (sopts.ChunkSize < streaming.MinChunkSize || sopts.ChunkSize > streaming.MaxChunkSize) {
		return nil, ErrInvalidChunkSize
	}

	if n.manager == nil {
		return nil, ErrNoSession
	}
	sess, ok := n.manager.Get(peerID)
	if !ok {
		return nil, ErrNoSession
	}

	handle, err := sess.Stream(ctx, payload, sopts)
	if err != nil {
		return nil, err
	}

	if n.logger != nil {
		n.logger.Debug("stream enqueued", "peer", peerID.Short(), "bytes", humanize.Bytes(uint64(len(payload))))
	}
	return handle, nil
}

// OnStream registers cb to be invoked once per inbound stream, across
// every peer. Only the most recently registered callback is active,
// matching spec.md §6's single-subscriber `on_stream(callback)`.
func (n *Node) OnStream(cb func(peer identity.NodeID, r *streaming.Reader)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onStream = cb
}

// OnPeerUp registers cb to be invoked once a session with a peer
// becomes established.
func (n *Node) OnPeerUp(cb func(peer identity.NodeID)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onPeerUp = cb
}

// OnPeerDown registers cb to be invoked once a session with a peer
// closes, with the error that ended it. A session ended by Shutdown
// reports context.Canceled, or nil if it was still open at Shutdown's
// deadline and had to be closed.
func (n *Node) OnPeerDown(cb func(peer identity.NodeID, reason error)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onPeerDown = cb
}

// Shutdown signals every session to close, waits up to 5 s for
// in-flight work to drain, then returns. It is safe to call at most
// once; a Node cannot be restarted after Shutdown.
func (n *Node) Shutdown() error {
	n.mu.Lock()
	if !n.started {
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()

	if n.cancel != nil {
		n.cancel()
	}

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		if n.logger != nil {
			n.logger.Warn("shutdown deadline exceeded, aborting remaining sessions")
		}
		if n.manager != nil {
			for _, id := range n.manager.Snapshot() {
				if sess, ok := n.manager.Get(id); ok {
					_ = sess.Close()
				}
			}
		}
	}

	if n.transport != nil {
		_ = n.transport.Close()
	}
	if n.logger != nil {
		n.logger.Info("node stopped", "node_id", n.localID.Short())
	}
	return nil
}
