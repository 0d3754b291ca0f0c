package engine

import (
	"sync"
)

// DefaultChunkSize is the plaintext chunk size used unless overridden.
const DefaultChunkSize = 64 * 1024

// bufferPool provides reusable chunk-sized buffers for stream I/O.
//
//nolint:gochecknoglobals
var bufferPool = sync.Pool{
	New: func() any {
		return make([]byte, DefaultChunkSize)
	},
}

// getBuffer returns a buffer of exactly size bytes, pooled when size matches
// the default chunk size.
func getBuffer(size int) []byte {
	if size == DefaultChunkSize {
		return bufferPool.Get().([]byte) //nolint:errcheck // pool only holds []byte
	}

	return make([]byte, size)
}

// putBuffer returns a pooled buffer. Oversized or undersized buffers are
// dropped.
func putBuffer(buf []byte) {
	if len(buf) == DefaultChunkSize {
		bufferPool.Put(buf) //nolint:staticcheck // slice is chunk sized
	}
}
