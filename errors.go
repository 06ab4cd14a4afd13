package asoc

import "errors"

// ErrNoSession is returned by Stream when no established session exists
// with the requested peer (spec.md §6 "Fails synchronously with
// NoSession").
var ErrNoSession = errors.New("asoc: no established session with peer")

// ErrInvalidChunkSize is returned by Stream when a StreamOption requests
// a chunk size outside spec.md §4.4's 4 KiB - 16 MiB range.
var ErrInvalidChunkSize = errors.New("asoc: invalid chunk_size")
