package discovery

import (
	"sync"
	"time"

	"github.com/asoc-io/asoc/internal/identity"
)

// replayKey identifies one discovery datagram for de-duplication: the
// same (sender, challenge) pair should never be accepted twice within
// the replay window (spec.md §4.2).
type replayKey struct {
	nodeID    identity.NodeID
	challenge uint32
}

// replayCache remembers recently accepted (node id, challenge) pairs so
// a retransmitted or replayed datagram only updates the peer table
// once.
type replayCache struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[replayKey]time.Time
}

func newReplayCache(window time.Duration) *replayCache {
	return &replayCache{window: window, seen: make(map[replayKey]time.Time)}
}

// seenBefore reports whether key was already recorded within the
// window, and records it if not.
func (c *replayCache) seenBefore(nodeID identity.NodeID, challenge uint32, now time.Time) bool {
	key := replayKey{nodeID, challenge}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ts, ok := c.seen[key]; ok && now.Sub(ts) <= c.window {
		return true
	}
	c.seen[key] = now
	return false
}

// sweep drops every entry older than the replay window.
func (c *replayCache) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, ts := range c.seen {
		if now.Sub(ts) > c.window {
			delete(c.seen, k)
		}
	}
}
