// Package discovery implements the UDP broadcast beacon that lets nodes
// in the same community find each other without a coordinator: an emit
// loop that broadcasts a signed datagram on an interval, and a receive
// loop that verifies, de-duplicates, and records what it hears
// (spec.md §4.2).
package discovery

import "time"

// Config mirrors the discovery-related subset of a Node's recognized
// configuration options (spec.md §6).
type Config struct {
	Community string
	APIKey    []byte
	Port      uint16 // TCP port this node accepts sessions on, advertised in the beacon

	DiscoveryPort     int
	BroadcastInterval time.Duration
	PeerTTL           time.Duration
	ReplayWindow      time.Duration
}

// DefaultConfig fills in the discovery defaults spec.md §6 enumerates.
func DefaultConfig() Config {
	return Config{
		DiscoveryPort:     9999,
		BroadcastInterval: 3 * time.Second,
		PeerTTL:           15 * time.Second,
		ReplayWindow:      120 * time.Second,
	}
}
