// Package protocol implements the ASoc wire format: discovery datagrams,
// frame headers, and the HELLO/ACCEPT handshake payloads. Every encoder
// produces a fixed, bit-exact byte layout; every decoder verifies it and
// authenticates it against the shared API key before returning.
package protocol

import "time"

const (
	Version uint8 = 1

	DiscoverySize     = 50
	NodeIDSize        = 16
	CommunityHashSize = 8
	DiscoverySigSize  = 16

	HeaderSize = 14

	HelloPayloadSize  = 36
	HelloSigSize      = 16
	AcceptPayloadSize = 16
	AcceptSigSize     = 8
	SessionTokenSize  = 8

	// HandshakeStreamID is the reserved stream id (0) frames carry during
	// the HELLO/ACCEPT exchange. It is invalid for any frame after the
	// session reaches ESTABLISHED.
	HandshakeStreamID uint32 = 0
)

// FrameType is the second byte of a frame header (the first byte holds
// the version).
type FrameType uint8

const (
	FrameData    FrameType = 1
	FrameEnd     FrameType = 2
	FrameControl FrameType = 3
	FrameHello   FrameType = 4
	FrameAccept  FrameType = 5
)

func (t FrameType) String() string {
	switch t {
	case FrameData:
		return "DATA"
	case FrameEnd:
		return "END"
	case FrameControl:
		return "CONTROL"
	case FrameHello:
		return "HELLO"
	case FrameAccept:
		return "ACCEPT"
	default:
		return "UNKNOWN"
	}
}

// DiscoveryFreshness is the maximum allowed skew between a discovery
// datagram's timestamp and the local clock (spec.md §4.2).
const DiscoveryFreshness = 60 * time.Second
