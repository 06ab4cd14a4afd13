package streaming

import (
	"context"
	"sync"

	"github.com/asoc-io/asoc/internal/protocol"
)

// StreamHandle represents an in-flight or completed outbound stream.
// Wait blocks until every frame belonging to the stream has been handed
// to the sender, or ctx is done first.
type StreamHandle struct {
	streamID uint32

	mu   sync.Mutex
	done bool
	err  error
	ch   chan struct{}
}

func newStreamHandle(id uint32) *StreamHandle {
	return &StreamHandle{streamID: id, ch: make(chan struct{})}
}

// StreamID returns the id assigned to this stream.
func (h *StreamHandle) StreamID() uint32 {
	return h.streamID
}

func (h *StreamHandle) finish(err error) {
	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		return
	}
	h.done = true
	h.err = err
	h.mu.Unlock()
	close(h.ch)
}

// Wait blocks until the stream completes (every frame handed off) or ctx
// is done, whichever comes first.
func (h *StreamHandle) Wait(ctx context.Context) (StreamResult, error) {
	select {
	case <-h.ch:
		h.mu.Lock()
		err := h.err
		h.mu.Unlock()
		if err != nil {
			return StreamResult{}, err
		}
		return StreamResult{StreamID: h.streamID}, nil
	case <-ctx.Done():
		return StreamResult{}, ctx.Err()
	}
}

// Stream chunks payload into frames of opts.ChunkSize (DefaultChunkSize
// if zero or outside MinChunkSize..MaxChunkSize) and hands them to e.sender in order, terminated by a single
// END frame. A zero-length payload still produces exactly one END frame
// with no preceding DATA frame (spec.md §4.4 "Edge cases").
//
// Cancelling ctx before the first frame has been handed off aborts the
// stream cleanly — nothing is sent. Cancelling it afterward is
// best-effort: the remaining chunks are still sent so the peer never
// observes a stream that started but never reached an END frame.
func (e *Engine) Stream(ctx context.Context, payload []byte, opts StreamOpts) (*StreamHandle, error) {
	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize < MinChunkSize || chunkSize > MaxChunkSize {
		chunkSize = DefaultChunkSize
	}

	e.mu.Lock()
	id, err := e.outIDs.allocate()
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	handle := newStreamHandle(id)

	go func() {
		defer func() {
			e.mu.Lock()
			e.outIDs.release(id)
			e.mu.Unlock()
		}()

		handedOff := false
		seq := uint32(0)

		for off := 0; off < len(payload); off += chunkSize {
			if !handedOff {
				select {
				case <-ctx.Done():
					handle.finish(ctx.Err())
					return
				default:
				}
			}

			end := off + chunkSize
			if end > len(payload) {
				end = len(payload)
			}

			f := Frame{Type: protocol.FrameData, StreamID: id, Seq: seq, Payload: payload[off:end]}
			if sendErr := e.sender.EnqueueOutbound(f); sendErr != nil {
				handle.finish(sendErr)
				return
			}
			handedOff = true
			seq++
		}

		endFrame := Frame{Type: protocol.FrameEnd, StreamID: id, Seq: seq}
		if sendErr := e.sender.EnqueueOutbound(endFrame); sendErr != nil {
			handle.finish(sendErr)
			return
		}

		handle.finish(nil)
	}()

	return handle, nil
}
