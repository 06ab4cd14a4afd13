package discovery

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/asoc-io/asoc/internal/identity"
	"github.com/asoc-io/asoc/internal/protocol"
	"golang.org/x/sync/errgroup"
)

// Discovery runs the emit/receive/cleanup loop trio and keeps a live
// peer table (spec.md §4.2).
type Discovery struct {
	cfg     Config
	localID identity.NodeID
	logger  *slog.Logger

	table  *peerTable
	replay *replayCache

	mu          sync.Mutex
	subscribers []func(PeerRecord)
}

// New builds a Discovery for the given local node id. Call Run to start
// its loops; it blocks until ctx is cancelled.
func New(cfg Config, localID identity.NodeID, logger *slog.Logger) *Discovery {
	return &Discovery{
		cfg:     cfg,
		localID: localID,
		logger:  logger,
		table:   newPeerTable(cfg.PeerTTL),
		replay:  newReplayCache(cfg.ReplayWindow),
	}
}

// Snapshot returns every currently known peer, most recently seen first.
func (d *Discovery) Snapshot() []PeerRecord {
	return d.table.snapshot()
}

// RecordFailure bumps nodeID's failure counter. The caller (the root
// package's Node, retrying a discovered peer) is responsible for deciding
// how many attempts to make; this just tracks eviction once the third
// failure is recorded (spec.md §4.3).
func (d *Discovery) RecordFailure(nodeID identity.NodeID) (failures int, evicted bool) {
	return d.table.recordFailure(nodeID)
}

// Subscribe registers a callback invoked once per newly accepted
// discovery datagram (i.e. on first sighting or any refresh).
func (d *Discovery) Subscribe(fn func(PeerRecord)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, fn)
}

func (d *Discovery) notify(rec PeerRecord) {
	d.mu.Lock()
	subs := append([]func(PeerRecord){}, d.subscribers...)
	d.mu.Unlock()
	for _, fn := range subs {
		fn(rec)
	}
}

// Run opens the broadcast and listen sockets and runs the emit, receive
// and cleanup loops until ctx is cancelled.
func (d *Discovery) Run(ctx context.Context) error {
	listenConn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: d.cfg.DiscoveryPort})
	if err != nil {
		return fmt.Errorf("discovery: listen: %w", err)
	}
	defer listenConn.Close()

	sendConn, err := newBroadcastSocket()
	if err != nil {
		return fmt.Errorf("discovery: broadcast socket: %w", err)
	}
	defer sendConn.Close()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return d.emitLoop(egCtx, sendConn) })
	eg.Go(func() error { return d.receiveLoop(egCtx, listenConn) })
	eg.Go(func() error { return d.cleanupLoop(egCtx) })

	return eg.Wait()
}

func (d *Discovery) emitLoop(ctx context.Context, conn *net.UDPConn) error {
	broadcastAddr := &net.UDPAddr{IP: net.IPv4bcast, Port: d.cfg.DiscoveryPort}

	for {
		challenge, err := randomUint32()
		if err != nil {
			return err
		}

		msg := protocol.EncodeDiscovery(d.cfg.Community, [protocol.NodeIDSize]byte(d.localID), d.cfg.Port, time.Now(), challenge, d.cfg.APIKey)
		if _, err := conn.WriteToUDP(msg, broadcastAddr); err != nil && d.logger != nil {
			d.logger.Debug("discovery broadcast failed", "error", err)
		}

		select {
		case <-time.After(jitteredInterval(d.cfg.BroadcastInterval)):
		case <-ctx.Done():
			return nil
		}
	}
}

func (d *Discovery) receiveLoop(ctx context.Context, conn *net.UDPConn) error {
	buf := make([]byte, 1024)

	go func() {
		<-ctx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		d.handleDatagram(buf[:n], addr.IP.String(), time.Now())
	}
}

// handleDatagram runs one inbound datagram through verification, replay
// rejection, and self-origin filtering, updating the peer table and
// notifying subscribers on acceptance (spec.md §4.2 "Receive loop").
// Split out from receiveLoop so the full accept/reject path is testable
// without a real socket.
func (d *Discovery) handleDatagram(buf []byte, host string, now time.Time) {
	dg, err := protocol.DecodeAndVerifyDiscovery(buf, d.cfg.Community, d.cfg.APIKey, now)
	if err != nil {
		return
	}

	nodeID := identity.NodeID(dg.NodeID)
	if nodeID == d.localID {
		return
	}

	if d.replay.seenBefore(nodeID, dg.Challenge, now) {
		return
	}

	d.table.upsert(nodeID, host, dg.Port, now)
	d.notify(PeerRecord{NodeID: nodeID, Host: host, Port: dg.Port, LastSeen: now})
}

func (d *Discovery) cleanupLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			d.table.expire(now)
			d.replay.sweep(now)
		case <-ctx.Done():
			return nil
		}
	}
}

func randomUint32() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// jitteredInterval applies spec.md's "±250 ms jitter" to a base
// interval.
func jitteredInterval(base time.Duration) time.Duration {
	const jitter = 250 * time.Millisecond
	delta := time.Duration(mathrand.Int63n(int64(2*jitter))) - jitter
	return base + delta
}

// newBroadcastSocket opens a UDP socket with SO_BROADCAST set. Plain
// net.DialUDP/net.ListenUDP give no way to set this option, so it is
// reached via the connection's raw syscall conn — the one place this
// package drops to the syscall package directly, since nothing in the
// example pack wraps broadcast-socket setup in a higher-level API.
func newBroadcastSocket() (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, err
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return nil, err
	}

	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if sockErr != nil {
		conn.Close()
		return nil, sockErr
	}

	return conn, nil
}
