package asoc

import (
	"fmt"
	"log/slog"
)

// Config is the full set of recognized options a Node is constructed
// with (spec.md §6).
type Config struct {
	// Community namespaces discovery traffic; only nodes with the same
	// community and api_key discover and authenticate each other.
	Community string
	APIKey    []byte

	// Port is the TCP port this node accepts sessions on. Zero picks an
	// ephemeral port, the same convention net.Listen(":0") uses; it is
	// never overridden by a default the way the other zero-valued fields
	// below are, since an explicit 0 here is a meaningful request, not
	// an omission.
	Port int

	// StaticPeers lists "host:port" addresses dialed directly,
	// independent of discovery.
	StaticPeers []string

	// EnableDiscovery turns the UDP broadcast beacon on. Hybrid mode —
	// both discovery and a static peer list — is allowed; the effective
	// peer set is their union.
	EnableDiscovery bool
	DiscoveryPort   int

	BroadcastIntervalS int
	PeerTTLS           int
	HandshakeTimeoutS  int
	IdleTimeoutS       int
	MaxFrameBytes      uint32
	ChunkSize          int

	// NodeID optionally seeds node identity from an external source
	// (spec.md §6 "Persisted state"). A canonical UUID string; if
	// empty, a fresh random id is drawn.
	NodeID string

	Logger *slog.Logger
}

// DefaultConfig returns the defaults spec.md §6 enumerates.
func DefaultConfig() Config {
	return Config{
		Port:               9000,
		EnableDiscovery:    true,
		DiscoveryPort:      9999,
		BroadcastIntervalS: 3,
		PeerTTLS:           15,
		HandshakeTimeoutS:  10,
		IdleTimeoutS:       30,
		MaxFrameBytes:      16 << 20,
		ChunkSize:          1 << 20,
	}
}

// withDefaults returns a copy of c with every zero-valued numeric field
// except Port filled in from DefaultConfig(); EnableDiscovery and the
// other non-numeric fields are left as given. This matches the teacher's inline-default-in-constructor
// pattern (see DESIGN.md) rather than a functional-options builder.
func (c Config) withDefaults() Config {
	d := DefaultConfig()

	if c.DiscoveryPort == 0 {
		c.DiscoveryPort = d.DiscoveryPort
	}
	if c.BroadcastIntervalS == 0 {
		c.BroadcastIntervalS = d.BroadcastIntervalS
	}
	if c.PeerTTLS == 0 {
		c.PeerTTLS = d.PeerTTLS
	}
	if c.HandshakeTimeoutS == 0 {
		c.HandshakeTimeoutS = d.HandshakeTimeoutS
	}
	if c.IdleTimeoutS == 0 {
		c.IdleTimeoutS = d.IdleTimeoutS
	}
	if c.MaxFrameBytes == 0 {
		c.MaxFrameBytes = d.MaxFrameBytes
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = d.ChunkSize
	}
	return c
}

func (c Config) validate() error {
	if c.Community == "" {
		return fmt.Errorf("asoc: community is required")
	}
	if len(c.APIKey) == 0 {
		return fmt.Errorf("asoc: api_key is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("asoc: port %d out of range", c.Port)
	}
	if c.EnableDiscovery {
		if c.DiscoveryPort < 1 || c.DiscoveryPort > 65535 {
			return fmt.Errorf("asoc: discovery_port %d out of range", c.DiscoveryPort)
		}
		if c.BroadcastIntervalS < 1 {
			return fmt.Errorf("asoc: broadcast_interval_s must be >= 1")
		}
		if c.PeerTTLS < c.BroadcastIntervalS {
			return fmt.Errorf("asoc: peer_ttl_s must be >= broadcast_interval_s")
		}
	}
	return nil
}
