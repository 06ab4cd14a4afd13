package session

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/asoc-io/asoc/internal/identity"
	"github.com/asoc-io/asoc/internal/protocol"
	"github.com/asoc-io/asoc/internal/streaming"
)

// drawChallenge returns a fresh random 32-bit challenge (spec.md §4.1).
func drawChallenge() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// drawSessionToken returns a fresh random 8-byte session token
// (spec.md §4.1's ACCEPT payload).
func drawSessionToken() ([protocol.SessionTokenSize]byte, error) {
	var tok [protocol.SessionTokenSize]byte
	_, err := rand.Read(tok[:])
	return tok, err
}

// initiateHandshake runs the initiator half of the exchange: draw a
// challenge, send HELLO, read ACCEPT, verify it. Any failure here is
// handshake-fatal; the caller closes the transport with no error frame
// (spec.md §4.3).
func initiateHandshake(conn net.Conn, cfg Config, timeout time.Duration) ([protocol.SessionTokenSize]byte, error) {
	var token [protocol.SessionTokenSize]byte

	challenge, err := drawChallenge()
	if err != nil {
		return token, err
	}

	var nodeID [protocol.NodeIDSize]byte
	copy(nodeID[:], cfg.LocalID[:])
	helloPayload := protocol.EncodeHello(nodeID, challenge, cfg.APIKey)

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return token, err
	}

	helloFrame := streaming.Frame{Type: protocol.FrameHello, StreamID: protocol.HandshakeStreamID, Payload: helloPayload}
	if err := writeFrame(conn, helloFrame); err != nil {
		return token, err
	}

	reply, err := readFrame(conn, protocol.AcceptPayloadSize)
	if err != nil {
		return token, err
	}
	if reply.Type != protocol.FrameAccept {
		return token, fmt.Errorf("%w: expected ACCEPT, got %s", ErrUnexpectedFrame, reply.Type)
	}

	return protocol.VerifyAccept(reply.Payload, cfg.APIKey)
}

// acceptHandshake runs the acceptor half: read HELLO, verify it, reject
// a duplicate node id (no error frame sent — spec.md §4.3), then draw
// and send a session token via ACCEPT.
func acceptHandshake(conn net.Conn, cfg Config, timeout time.Duration, isDuplicate func(identity.NodeID) bool) (identity.NodeID, [protocol.SessionTokenSize]byte, error) {
	var (
		peerID identity.NodeID
		token  [protocol.SessionTokenSize]byte
	)

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return peerID, token, err
	}

	req, err := readFrame(conn, protocol.HelloPayloadSize)
	if err != nil {
		return peerID, token, err
	}
	if req.Type != protocol.FrameHello {
		return peerID, token, fmt.Errorf("%w: expected HELLO, got %s", ErrUnexpectedFrame, req.Type)
	}

	hello, err := protocol.DecodeAndVerifyHello(req.Payload, cfg.APIKey)
	if err != nil {
		return peerID, token, err
	}
	peerID = identity.NodeID(hello.NodeID)

	if isDuplicate != nil && isDuplicate(peerID) {
		return peerID, token, ErrDuplicatePeer
	}

	token, err = drawSessionToken()
	if err != nil {
		return peerID, token, err
	}

	acceptPayload := protocol.EncodeAccept(token, cfg.APIKey)
	acceptFrame := streaming.Frame{Type: protocol.FrameAccept, StreamID: protocol.HandshakeStreamID, Payload: acceptPayload}
	if err := writeFrame(conn, acceptFrame); err != nil {
		return peerID, token, err
	}

	return peerID, token, nil
}
