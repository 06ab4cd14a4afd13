package asoc

import "github.com/asoc-io/asoc/internal/streaming"

// StreamOption tweaks a single Stream call away from its defaults.
type StreamOption func(*streaming.StreamOpts)

// WithChunkSize overrides the chunk size for one stream (spec.md §4.4:
// 4 KiB - 16 MiB, default 1 MiB).
func WithChunkSize(n int) StreamOption {
	return func(o *streaming.StreamOpts) { o.ChunkSize = n }
}

// WithTag sets an application-defined 32-bit label on the stream's
// options. It is never interpreted by this package and is not sent to
// the peer.
func WithTag(tag uint32) StreamOption {
	return func(o *streaming.StreamOpts) { o.Tag = &tag }
}
