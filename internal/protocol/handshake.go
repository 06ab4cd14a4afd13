package protocol

import "encoding/binary"

// EncodeHello lays out the 36-byte HELLO payload per spec.md §4.1:
//
//	16 B node UUID || 4 B challenge || 16 B HMAC-SHA256(key, UUID||challenge)[0..16]
func EncodeHello(nodeID [NodeIDSize]byte, challenge uint32, apiKey []byte) []byte {
	buf := make([]byte, HelloPayloadSize)
	copy(buf[0:16], nodeID[:])
	binary.BigEndian.PutUint32(buf[16:20], challenge)

	sig := sign(apiKey, buf[0:20], HelloSigSize)
	copy(buf[20:36], sig)

	return buf
}

// Hello is the decoded, verified HELLO payload.
type Hello struct {
	NodeID    [NodeIDSize]byte
	Challenge uint32
}

// DecodeAndVerifyHello checks length and HMAC signature.
func DecodeAndVerifyHello(data []byte, apiKey []byte) (Hello, error) {
	var h Hello

	if len(data) != HelloPayloadSize {
		return h, ErrBadLength
	}

	sig := data[20:36]
	if !verify(apiKey, data[0:20], sig) {
		return h, ErrBadSignature
	}

	copy(h.NodeID[:], data[0:16])
	h.Challenge = binary.BigEndian.Uint32(data[16:20])

	return h, nil
}

// EncodeAccept builds the 16-byte ACCEPT payload (8 B random session
// token || 8 B HMAC-SHA256(key, token)[0..8]) and returns the wire
// payload. The token is supplied by the caller, which retains it on the
// session.
func EncodeAccept(token [SessionTokenSize]byte, apiKey []byte) []byte {
	buf := make([]byte, AcceptPayloadSize)
	copy(buf[0:8], token[:])

	sig := sign(apiKey, buf[0:8], AcceptSigSize)
	copy(buf[8:16], sig)

	return buf
}

// VerifyAccept checks length and signature and returns the session token
// carried in the payload.
func VerifyAccept(data []byte, apiKey []byte) ([SessionTokenSize]byte, error) {
	var token [SessionTokenSize]byte

	if len(data) != AcceptPayloadSize {
		return token, ErrBadLength
	}

	sig := data[8:16]
	if !verify(apiKey, data[0:8], sig) {
		return token, ErrBadSignature
	}

	copy(token[:], data[0:8])
	return token, nil
}
