// Package streaming implements the chunker and reassembler that turn a
// byte payload into a numbered run of DATA frames terminated by an END
// frame, and back again (spec.md §4.4).
//
// This package never imports the session package. A Stream is handed a
// narrow Sender at construction time and calls into it to hand off
// outbound frames; it never reaches back into the connection that owns
// it. That keeps ownership one-directional: session imports streaming,
// streaming knows nothing about session.
package streaming

import (
	"errors"

	"github.com/asoc-io/asoc/internal/protocol"
)

// Frame is a decoded protocol frame, addressed to/from a single peer
// session. It mirrors protocol.FrameHeader plus its payload.
type Frame struct {
	Type     protocol.FrameType
	StreamID uint32
	Seq      uint32
	Payload  []byte
}

// Sender is the narrow surface a Stream needs from its owning connection:
// hand a frame to the session's outbound queue, blocking for backpressure
// until the queue accepts it (or the session is closed).
type Sender interface {
	EnqueueOutbound(f Frame) error
}

// Errors surfaced by the reassembler. A protocol violation on any stream
// is fatal for the whole session (spec.md §4.4 "Edge cases").
var (
	ErrSequenceGap    = errors.New("streaming: sequence gap")
	ErrBadParity      = errors.New("streaming: stream id parity violation")
	ErrStreamIDZero   = errors.New("streaming: stream id 0 is reserved for handshake")
	ErrUnknownStream  = errors.New("streaming: frame for unknown stream")
	ErrStreamExists   = errors.New("streaming: stream id already active")
	ErrStreamsExhausted = errors.New("streaming: no free stream id")
)

// StreamOpts configures an outbound stream. The zero value uses the
// default chunk size and no tag.
type StreamOpts struct {
	// ChunkSize overrides the default chunk size (spec.md §4.4: 4 KiB -
	// 16 MiB, default 1 MiB). Zero means "use the engine default".
	ChunkSize int

	// Tag is a 32-bit application label. This package never inspects
	// it and never sends it: no frame carries it, so the receiving
	// Reader's Tag is always nil.
	Tag *uint32
}

// StreamResult is returned once a Stream's last frame has been handed to
// the sender.
type StreamResult struct {
	StreamID  uint32
	ChunkCount int
}

const (
	// DefaultChunkSize is used when StreamOpts.ChunkSize is zero.
	DefaultChunkSize = 1 << 20 // 1 MiB

	MinChunkSize = 4 << 10  // 4 KiB
	MaxChunkSize = 16 << 20 // 16 MiB
)
