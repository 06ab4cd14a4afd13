package protocol

import "errors"

// Codec errors. Every decode operation fails with exactly one of these
// (spec.md §4.1) so callers can branch with errors.Is.
var (
	ErrShortBuffer    = errors.New("protocol: short buffer")
	ErrBadVersion     = errors.New("protocol: bad version")
	ErrUnknownType    = errors.New("protocol: unknown frame type")
	ErrBadLength      = errors.New("protocol: bad length")
	ErrBadSignature   = errors.New("protocol: bad signature")
	ErrStaleTimestamp = errors.New("protocol: stale timestamp")
)
