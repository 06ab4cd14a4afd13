package streaming

import (
	"context"
	"io"

	"github.com/asoc-io/asoc/internal/protocol"
)

// Reader delivers the chunks of one inbound stream in order. Read
// mirrors io.Reader's contract through a context: it blocks until the
// next chunk arrives, the stream ends (io.EOF), or ctx is done.
type Reader struct {
	chunks chan []byte
	errCh  chan error
	tag    *uint32
}

func newReader() *Reader {
	return &Reader{
		chunks: make(chan []byte, 8),
		errCh:  make(chan error, 1),
	}
}

// Tag returns the stream's application label, if the sender set one.
// Always nil for this transport since spec.md's wire format carries no
// tag field on the frame itself; reserved for a future extension.
func (r *Reader) Tag() *uint32 {
	return r.tag
}

// Read blocks for the next chunk. It returns io.EOF once the stream's
// END frame has been processed, or the abort reason if the session
// tore the stream down early (spec.md §4.4 "Edge cases").
func (r *Reader) Read(ctx context.Context) ([]byte, error) {
	select {
	case c, ok := <-r.chunks:
		if ok {
			return c, nil
		}
		select {
		case err := <-r.errCh:
			return nil, err
		default:
			return nil, io.EOF
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type inboundStream struct {
	reader  *Reader
	lastSeq int64 // -1 until the first DATA frame arrives
}

// HandleInbound processes one DATA/END frame addressed to a stream other
// than the handshake's reserved id 0. onStream is invoked exactly once,
// in its own goroutine, the first time a given stream id is observed.
//
// Any violation here (bad parity, a sequence gap, reuse of an id already
// active) is returned as an error; the caller is expected to treat it as
// fatal for the whole session, per spec.md's sequence-gap edge case.
func (e *Engine) HandleInbound(f Frame) error {
	if f.StreamID == protocol.HandshakeStreamID {
		return ErrStreamIDZero
	}

	e.mu.Lock()

	st, known := e.inbound[f.StreamID]
	if !known {
		// A fresh inbound stream must have been allocated by the peer
		// playing the opposite role: if we are the connection initiator,
		// the peer is the acceptor and allocates even ids, and vice versa.
		wantOdd := !e.initiator
		gotOdd := f.StreamID%2 == 1
		if gotOdd != wantOdd {
			e.mu.Unlock()
			return ErrBadParity
		}

		st = &inboundStream{reader: newReader(), lastSeq: -1}
		e.inbound[f.StreamID] = st

		onStream := e.onStream
		peer := e.peer
		reader := st.reader
		e.mu.Unlock()

		if onStream != nil {
			go onStream(peer, reader)
		}
	} else {
		e.mu.Unlock()
	}

	switch f.Type {
	case protocol.FrameData:
		if int64(f.Seq) != st.lastSeq+1 {
			return ErrSequenceGap
		}
		st.lastSeq = int64(f.Seq)

		// Blocks once the channel's buffer fills, which is exactly the
		// backpressure point: the session's frame reader won't pull the
		// next frame off the socket until the application drains this one.
		st.reader.chunks <- f.Payload

	case protocol.FrameEnd:
		if int64(f.Seq) != st.lastSeq+1 {
			return ErrSequenceGap
		}
		e.mu.Lock()
		delete(e.inbound, f.StreamID)
		e.mu.Unlock()
		close(st.reader.chunks)

	default:
		return ErrUnknownStream
	}

	return nil
}

// Abort tears down every inbound stream on this engine with err, waking
// any reader blocked in Read. The session calls this when the
// connection is torn down so callbacks don't block forever.
func (e *Engine) Abort(err error) {
	e.mu.Lock()
	streams := e.inbound
	e.inbound = make(map[uint32]*inboundStream)
	e.mu.Unlock()

	for _, st := range streams {
		st.reader.errCh <- err
		close(st.reader.chunks)
	}
}
