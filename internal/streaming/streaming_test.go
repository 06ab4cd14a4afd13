package streaming

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/asoc-io/asoc/internal/identity"
	"github.com/asoc-io/asoc/internal/protocol"
	"github.com/stretchr/testify/require"
)

// fakeSender feeds every enqueued frame directly into a peer Engine's
// HandleInbound, simulating a session's writer/reader pair without any
// network involved.
type fakeSender struct {
	mu     sync.Mutex
	frames []Frame
	peer   *Engine
	fail   error
}

func (s *fakeSender) EnqueueOutbound(f Frame) error {
	if s.fail != nil {
		return s.fail
	}
	s.mu.Lock()
	s.frames = append(s.frames, f)
	s.mu.Unlock()
	if s.peer != nil {
		return s.peer.HandleInbound(f)
	}
	return nil
}

func TestStreamSingleChunkRoundTrip(t *testing.T) {
	var received []byte
	done := make(chan struct{})

	receiverEngine := NewEngine(identity.New(), false, nil, func(_ identity.NodeID, r *Reader) {
		defer close(done)
		for {
			chunk, err := r.Read(context.Background())
			if err == io.EOF {
				return
			}
			require.NoError(t, err)
			received = append(received, chunk...)
		}
	})

	sender := &fakeSender{peer: receiverEngine}
	senderEngine := NewEngine(identity.New(), true, sender, nil)

	payload := []byte("hello tensor")
	handle, err := senderEngine.Stream(context.Background(), payload, StreamOpts{})
	require.NoError(t, err)

	_, err = handle.Wait(context.Background())
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("receiver never completed")
	}

	require.Equal(t, payload, received)
	require.Equal(t, uint32(1), handle.StreamID())
}

func TestStreamZeroLengthPayloadProducesOnlyEnd(t *testing.T) {
	sender := &fakeSender{}
	engine := NewEngine(identity.New(), true, sender, nil)

	handle, err := engine.Stream(context.Background(), nil, StreamOpts{})
	require.NoError(t, err)

	_, err = handle.Wait(context.Background())
	require.NoError(t, err)

	require.Len(t, sender.frames, 1)
	require.Equal(t, protocol.FrameEnd, sender.frames[0].Type)
	require.Equal(t, uint32(0), sender.frames[0].Seq)
}

func TestStreamChunksLargePayload(t *testing.T) {
	sender := &fakeSender{}
	engine := NewEngine(identity.New(), true, sender, nil)

	payload := make([]byte, 7*MinChunkSize+1)
	handle, err := engine.Stream(context.Background(), payload, StreamOpts{ChunkSize: MinChunkSize})
	require.NoError(t, err)

	_, err = handle.Wait(context.Background())
	require.NoError(t, err)

	// 7 full chunks + 1 byte remainder = 8 DATA frames, then 1 END.
	require.Len(t, sender.frames, 9)
	for i := 0; i < 8; i++ {
		require.Equal(t, protocol.FrameData, sender.frames[i].Type)
		require.Equal(t, uint32(i), sender.frames[i].Seq)
	}
	require.Equal(t, protocol.FrameEnd, sender.frames[8].Type)
}

func TestInitiatorAndAcceptorAllocateDisjointParity(t *testing.T) {
	initEngine := NewEngine(identity.New(), true, &fakeSender{}, nil)
	acceptEngine := NewEngine(identity.New(), false, &fakeSender{}, nil)

	h1, err := initEngine.Stream(context.Background(), []byte("a"), StreamOpts{})
	require.NoError(t, err)
	require.Equal(t, uint32(1), h1.StreamID())

	h2, err := acceptEngine.Stream(context.Background(), []byte("b"), StreamOpts{})
	require.NoError(t, err)
	require.Equal(t, uint32(2), h2.StreamID())
}

func TestHandleInboundRejectsBadParity(t *testing.T) {
	engine := NewEngine(identity.New(), true, &fakeSender{}, nil)

	// engine is the initiator side, so inbound streams must be
	// even-numbered (allocated by the acceptor peer).
	err := engine.HandleInbound(Frame{Type: protocol.FrameData, StreamID: 1, Seq: 0, Payload: []byte("x")})
	require.ErrorIs(t, err, ErrBadParity)
}

func TestHandleInboundRejectsSequenceGap(t *testing.T) {
	engine := NewEngine(identity.New(), true, &fakeSender{}, func(_ identity.NodeID, r *Reader) {
		for {
			if _, err := r.Read(context.Background()); err != nil {
				return
			}
		}
	})

	require.NoError(t, engine.HandleInbound(Frame{Type: protocol.FrameData, StreamID: 2, Seq: 0, Payload: []byte("x")}))
	err := engine.HandleInbound(Frame{Type: protocol.FrameData, StreamID: 2, Seq: 2, Payload: []byte("y")})
	require.ErrorIs(t, err, ErrSequenceGap)
}

func TestHandleInboundRejectsStreamIDZero(t *testing.T) {
	engine := NewEngine(identity.New(), true, &fakeSender{}, nil)
	err := engine.HandleInbound(Frame{Type: protocol.FrameData, StreamID: 0, Seq: 0})
	require.ErrorIs(t, err, ErrStreamIDZero)
}

func TestAbortWakesBlockedReaders(t *testing.T) {
	readErr := make(chan error, 1)
	engine := NewEngine(identity.New(), true, &fakeSender{}, func(_ identity.NodeID, r *Reader) {
		for {
			if _, err := r.Read(context.Background()); err != nil {
				readErr <- err
				return
			}
		}
	})

	require.NoError(t, engine.HandleInbound(Frame{Type: protocol.FrameData, StreamID: 2, Seq: 0, Payload: []byte("x")}))
	// drain the first chunk so the next Read blocks on the channel.
	time.Sleep(10 * time.Millisecond)

	engine.Abort(io.ErrClosedPipe)

	select {
	case err := <-readErr:
		_ = err
	case <-time.After(time.Second):
		t.Fatal("reader was never woken by Abort")
	}
}
