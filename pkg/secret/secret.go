// Package secret holds sensitive byte material (passwords, derived keys) in
// buffers that can be wiped once they are no longer needed.
//
// Wiping is best effort: Go may have copied the bytes elsewhere (stack growth,
// GC moves), but zeroing the canonical buffer keeps secrets from lingering in
// long-lived allocations.
package secret

import (
	"crypto/subtle"
	"runtime"
)

// Text is a byte buffer holding secret material with explicit zeroing.
//
// The zero value is usable and behaves as an empty secret.
type Text struct {
	data []byte
}

// FromString copies s into a new Text. The caller still owns the original
// string, which cannot be wiped.
func FromString(s string) *Text {
	data := make([]byte, len(s))
	copy(data, s)

	return &Text{data: data}
}

// FromBytes takes ownership of b. The caller must not use b afterwards;
// Zero on the returned Text wipes it.
func FromBytes(b []byte) *Text {
	return &Text{data: b}
}

// Bytes exposes the underlying buffer without copying. The slice is only
// valid until Zero is called.
func (t *Text) Bytes() []byte {
	if t == nil {
		return nil
	}

	return t.data
}

// Len returns the number of secret bytes held.
func (t *Text) Len() int {
	if t == nil {
		return 0
	}

	return len(t.data)
}

// Equal compares two secrets in constant time.
func (t *Text) Equal(other *Text) bool {
	return subtle.ConstantTimeCompare(t.Bytes(), other.Bytes()) == 1
}

// Zero overwrites the buffer with zeros. Safe to call multiple times.
func (t *Text) Zero() {
	if t == nil {
		return
	}

	Wipe(t.data)
	t.data = nil
}

// Wipe overwrites b with zeros.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}

	runtime.KeepAlive(b)
}
