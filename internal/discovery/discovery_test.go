package discovery

import (
	"testing"
	"time"

	"github.com/asoc-io/asoc/internal/identity"
	"github.com/asoc-io/asoc/internal/protocol"
	"github.com/stretchr/testify/require"
)

func TestPeerTableUpsertAndExpire(t *testing.T) {
	table := newPeerTable(15 * time.Second)
	id := identity.New()
	now := time.Now()

	table.upsert(id, "10.0.0.5", 9000, now)
	snap := table.snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, id, snap[0].NodeID)

	table.expire(now.Add(16 * time.Second))
	require.Empty(t, table.snapshot())
}

func TestPeerTableRecordFailureEvictsAfterThree(t *testing.T) {
	table := newPeerTable(15 * time.Second)
	id := identity.New()
	now := time.Now()
	table.upsert(id, "10.0.0.5", 9000, now)

	n, evicted := table.recordFailure(id)
	require.Equal(t, 1, n)
	require.False(t, evicted)

	n, evicted = table.recordFailure(id)
	require.Equal(t, 2, n)
	require.False(t, evicted)

	n, evicted = table.recordFailure(id)
	require.Equal(t, 3, n)
	require.True(t, evicted)

	require.Empty(t, table.snapshot())
}

func TestReplayCacheRejectsDuplicateWithinWindow(t *testing.T) {
	cache := newReplayCache(120 * time.Second)
	id := identity.New()
	now := time.Now()

	require.False(t, cache.seenBefore(id, 42, now))
	require.True(t, cache.seenBefore(id, 42, now.Add(time.Second)))
	require.False(t, cache.seenBefore(id, 42, now.Add(121*time.Second)))
}

func TestReplaySweepDropsExpiredEntries(t *testing.T) {
	cache := newReplayCache(120 * time.Second)
	id := identity.New()
	now := time.Now()
	cache.seenBefore(id, 1, now)

	cache.sweep(now.Add(121 * time.Second))
	require.False(t, cache.seenBefore(id, 1, now.Add(121*time.Second)))
}

// TestHandleDatagramIgnoresWrongAPIKey is spec.md §8 scenario 2 at the
// Discovery component level: a datagram signed with a different api_key
// than the local node's is dropped silently, leaving the peer table
// empty.
func TestHandleDatagramIgnoresWrongAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Community = "c1"
	cfg.APIKey = []byte("k1")
	cfg.Port = 9000

	d := New(cfg, identity.New(), nil)

	senderID := identity.New()
	now := time.Now()
	datagram := protocol.EncodeDiscovery("c1", [protocol.NodeIDSize]byte(senderID), 9000, now, 7, []byte("k2"))

	d.handleDatagram(datagram, "10.0.0.5", now)

	require.Empty(t, d.Snapshot())
}

// TestHandleDatagramAcceptsMatchingCommunityAndKey is the accept path
// paired with the reject path above, confirming the peer table is
// populated once the signature actually verifies.
func TestHandleDatagramAcceptsMatchingCommunityAndKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Community = "c1"
	cfg.APIKey = []byte("shared-key")
	cfg.Port = 9000

	d := New(cfg, identity.New(), nil)

	senderID := identity.New()
	now := time.Now()
	datagram := protocol.EncodeDiscovery("c1", [protocol.NodeIDSize]byte(senderID), 9000, now, 7, []byte("shared-key"))

	d.handleDatagram(datagram, "10.0.0.5", now)

	snap := d.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, senderID, snap[0].NodeID)
}

// TestHandleDatagramIgnoresSelf confirms a node never adds itself to its
// own peer table, even if it somehow received its own broadcast back
// (spec.md §4.2 "ignore datagrams whose node id equals the local node id").
func TestHandleDatagramIgnoresSelf(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Community = "c1"
	cfg.APIKey = []byte("shared-key")
	cfg.Port = 9000

	localID := identity.New()
	d := New(cfg, localID, nil)

	now := time.Now()
	datagram := protocol.EncodeDiscovery("c1", [protocol.NodeIDSize]byte(localID), 9000, now, 7, []byte("shared-key"))

	d.handleDatagram(datagram, "10.0.0.5", now)

	require.Empty(t, d.Snapshot())
}

// TestHandleDatagramReplayUpdatesOnce confirms handleDatagram, exercised
// through the same path the receive loop uses, only updates the peer
// table once for a replayed datagram (spec.md §8 "Replay protection").
func TestHandleDatagramReplayUpdatesOnce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Community = "c1"
	cfg.APIKey = []byte("shared-key")
	cfg.Port = 9000

	d := New(cfg, identity.New(), nil)

	senderID := identity.New()
	now := time.Now()
	datagram := protocol.EncodeDiscovery("c1", [protocol.NodeIDSize]byte(senderID), 9000, now, 99, []byte("shared-key"))

	d.handleDatagram(datagram, "10.0.0.5", now)
	d.handleDatagram(datagram, "10.0.0.5", now.Add(time.Second))

	require.Len(t, d.Snapshot(), 1)
}

func TestJitteredIntervalStaysWithinBounds(t *testing.T) {
	base := 3 * time.Second
	for i := 0; i < 100; i++ {
		d := jitteredInterval(base)
		require.GreaterOrEqual(t, d, base-250*time.Millisecond)
		require.LessOrEqual(t, d, base+250*time.Millisecond)
	}
}
