package session

import (
	"io"
	"net"

	"github.com/asoc-io/asoc/internal/protocol"
	"github.com/asoc-io/asoc/internal/streaming"
)

// writeFrame encodes f's header and payload and writes them as a single
// Write call, matching spec.md's "frames are never interleaved" wire
// guarantee — nothing else will write to conn between the two halves.
func writeFrame(conn net.Conn, f streaming.Frame) error {
	header := protocol.EncodeFrameHeader(protocol.FrameHeader{
		Type:       f.Type,
		StreamID:   f.StreamID,
		Seq:        f.Seq,
		PayloadLen: uint32(len(f.Payload)),
	})

	buf := make([]byte, len(header)+len(f.Payload))
	copy(buf, header[:])
	copy(buf[len(header):], f.Payload)

	_, err := conn.Write(buf)
	return err
}

// readFrame reads exactly one frame: 14 bytes of header, then exactly
// PayloadLen bytes of payload. A payload longer than maxPayload is
// rejected before it is read, bounding memory use against a hostile or
// buggy peer (spec.md §4.3).
func readFrame(conn net.Conn, maxPayload uint32) (streaming.Frame, error) {
	var headerBuf [protocol.HeaderSize]byte
	if _, err := io.ReadFull(conn, headerBuf[:]); err != nil {
		return streaming.Frame{}, err
	}

	header, err := protocol.DecodeFrameHeader(headerBuf[:])
	if err != nil {
		return streaming.Frame{}, err
	}

	if header.PayloadLen > maxPayload {
		return streaming.Frame{}, ErrFrameTooLarge
	}

	payload := make([]byte, header.PayloadLen)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return streaming.Frame{}, err
	}

	return streaming.Frame{
		Type:     header.Type,
		StreamID: header.StreamID,
		Seq:      header.Seq,
		Payload:  payload,
	}, nil
}
