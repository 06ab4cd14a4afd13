package streaming

import (
	"sync"

	"github.com/asoc-io/asoc/internal/identity"
)

// Engine is the per-session streaming state: one outbound id allocator,
// one inbound stream table, and a reference to the narrow Sender used to
// hand off frames. A session constructs exactly one Engine once its
// handshake completes and feeds it every DATA/END frame it reads off the
// wire (spec.md §4.4).
type Engine struct {
	mu        sync.Mutex
	initiator bool
	peer      identity.NodeID
	sender    Sender
	onStream  func(identity.NodeID, *Reader)

	outIDs  *idAllocator
	inbound map[uint32]*inboundStream
}

// NewEngine builds a streaming engine for one session. initiator must be
// true on the side that dialed the connection; it decides which stream
// id parity this engine allocates and which parity it expects from the
// peer. onStream, if non-nil, is invoked once per newly observed inbound
// stream.
func NewEngine(peer identity.NodeID, initiator bool, sender Sender, onStream func(identity.NodeID, *Reader)) *Engine {
	return &Engine{
		initiator: initiator,
		peer:      peer,
		sender:    sender,
		onStream:  onStream,
		outIDs:    newIDAllocator(initiator),
		inbound:   make(map[uint32]*inboundStream),
	}
}
