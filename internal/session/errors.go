package session

import "errors"

var (
	ErrClosed             = errors.New("session: closed")
	ErrHandshakeTimeout   = errors.New("session: handshake timed out")
	ErrIdleTimeout        = errors.New("session: idle timeout")
	ErrDuplicatePeer      = errors.New("session: duplicate peer node id")
	ErrProtocolViolation  = errors.New("session: protocol violation")
	ErrFrameTooLarge      = errors.New("session: frame exceeds max payload length")
	ErrUnexpectedFrame    = errors.New("session: unexpected frame type for state")
)
