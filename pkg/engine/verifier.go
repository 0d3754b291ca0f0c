package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"hash"
)

// tagWriter accumulates an HMAC-SHA256 tag over the ciphertext stream. It is
// updated strictly in stream order and finalized exactly once.
type tagWriter struct {
	mac       hash.Hash
	finalized bool
}

func newTagWriter(macKey []byte) *tagWriter {
	return &tagWriter{mac: hmac.New(sha256.New, macKey)}
}

// update folds chunk into the running tag.
func (t *tagWriter) update(chunk []byte) {
	if t.finalized {
		panic("engine: tag updated after finalize")
	}

	t.mac.Write(chunk)
}

// finalize returns the tag. Further updates panic.
func (t *tagWriter) finalize() []byte {
	t.finalized = true

	return t.mac.Sum(nil)
}

// verify finalizes and compares against expected in constant time.
func (t *tagWriter) verify(expected []byte) bool {
	return hmac.Equal(t.finalize(), expected)
}
