package discovery

import (
	"sort"
	"sync"
	"time"

	"github.com/asoc-io/asoc/internal/identity"
)

// PeerRecord is one entry in the peer table (spec.md §3): a node id and
// the endpoint it was last heard advertising itself on.
type PeerRecord struct {
	NodeID   identity.NodeID
	Host     string
	Port     uint16
	LastSeen time.Time
	Failures int
}

// peerTable tracks the most recent discovery datagram from each node id
// and expires entries that haven't refreshed within the TTL.
type peerTable struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[identity.NodeID]PeerRecord
}

func newPeerTable(ttl time.Duration) *peerTable {
	return &peerTable{ttl: ttl, entries: make(map[identity.NodeID]PeerRecord)}
}

// upsert inserts or refreshes a peer's record.
func (t *peerTable) upsert(nodeID identity.NodeID, host string, port uint16, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.entries[nodeID]
	rec.NodeID = nodeID
	rec.Host = host
	rec.Port = port
	rec.LastSeen = now
	rec.Failures = 0
	t.entries[nodeID] = rec
}

// recordFailure bumps a peer's consecutive-failure counter and returns
// the new count. Three consecutive failures evicts the peer record
// (spec.md §4.3 "For discovered peers... on the third failure evict").
func (t *peerTable) recordFailure(nodeID identity.NodeID) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.entries[nodeID]
	if !ok {
		return 0, false
	}
	rec.Failures++
	if rec.Failures >= 3 {
		delete(t.entries, nodeID)
		return rec.Failures, true
	}
	t.entries[nodeID] = rec
	return rec.Failures, false
}

// expire removes every entry not refreshed within the TTL of now.
func (t *peerTable) expire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, rec := range t.entries {
		if now.Sub(rec.LastSeen) > t.ttl {
			delete(t.entries, id)
		}
	}
}

// snapshot returns every current record, most recently seen first.
func (t *peerTable) snapshot() []PeerRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PeerRecord, 0, len(t.entries))
	for _, rec := range t.entries {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out
}
