// Package session implements the connection component: the handshake
// that promotes a raw transport into an authenticated session, the
// frame reader/writer pair that carries it, and the state machine that
// governs its lifecycle (spec.md §4.3).
package session

import (
	"time"

	"github.com/asoc-io/asoc/internal/identity"
	"github.com/asoc-io/asoc/internal/streaming"
)

// Config carries every tunable the connection component reads, mirroring
// the options a Node is constructed with (spec.md §6).
type Config struct {
	Community string
	APIKey    []byte
	LocalID   identity.NodeID

	HandshakeTimeout time.Duration
	IdleTimeout      time.Duration
	ConnectTimeout   time.Duration
	SendDrainTimeout time.Duration
	MaxFrameBytes    uint32
	ChunkSize        int
}

// DefaultConfig fills in every timeout and size bound named in spec.md
// §6's recognized configuration options.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		IdleTimeout:      30 * time.Second,
		ConnectTimeout:   10 * time.Second,
		SendDrainTimeout: 10 * time.Second,
		MaxFrameBytes:    16 << 20,
		ChunkSize:        streaming.DefaultChunkSize,
	}
}

// Callbacks are the application hooks a session's lifecycle drives.
// OnStream fires once per newly observed inbound stream; OnPeerDown
// fires exactly once per session, with the reason it closed.
type Callbacks struct {
	OnStream   func(identity.NodeID, *streaming.Reader)
	OnPeerUp   func(identity.NodeID, *Session)
	OnPeerDown func(identity.NodeID, error)
}
