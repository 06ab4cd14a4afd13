package protocol

import "encoding/binary"

// FrameHeader is the fixed 14-byte header preceding every frame payload
// (spec.md §4.1).
type FrameHeader struct {
	Type      FrameType
	StreamID  uint32
	Seq       uint32
	PayloadLen uint32
}

// EncodeFrameHeader packs h into the wire's 14-byte header:
//
//	offset  size  field
//	0       1     version
//	1       1     type
//	2       4     stream id
//	6       4     sequence
//	10      4     payload length
func EncodeFrameHeader(h FrameHeader) [HeaderSize]byte {
	var buf [HeaderSize]byte
	buf[0] = Version
	buf[1] = byte(h.Type)
	binary.BigEndian.PutUint32(buf[2:6], h.StreamID)
	binary.BigEndian.PutUint32(buf[6:10], h.Seq)
	binary.BigEndian.PutUint32(buf[10:14], h.PayloadLen)
	return buf
}

// DecodeFrameHeader validates the version byte and frame type, then
// unpacks the remaining fields. It does not enforce max-payload-length
// bounds; that is a connection-level policy (spec.md §4.3).
func DecodeFrameHeader(data []byte) (FrameHeader, error) {
	var h FrameHeader

	if len(data) < HeaderSize {
		return h, ErrShortBuffer
	}

	if data[0] != Version {
		return h, ErrBadVersion
	}

	t := FrameType(data[1])
	switch t {
	case FrameData, FrameEnd, FrameControl, FrameHello, FrameAccept:
	default:
		return h, ErrUnknownType
	}

	h.Type = t
	h.StreamID = binary.BigEndian.Uint32(data[2:6])
	h.Seq = binary.BigEndian.Uint32(data[6:10])
	h.PayloadLen = binary.BigEndian.Uint32(data[10:14])

	return h, nil
}
