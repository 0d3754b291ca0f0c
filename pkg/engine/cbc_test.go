package engine

import (
	"bytes"
	"crypto/aes"
	"errors"
	"testing"
)

func TestPkcs7PadAlwaysPads(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		length  int
		wantPad int
	}{
		{"empty", 0, 16},
		{"one byte", 1, 15},
		{"almost full", 15, 1},
		{"aligned gets full block", 16, 16},
		{"two blocks aligned", 32, 16},
		{"two blocks plus one", 33, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := bytes.Repeat([]byte{0x5a}, tt.length)
			padded := pkcs7Pad(data, aes.BlockSize)

			if len(padded) != tt.length+tt.wantPad {
				t.Fatalf("padded length = %d, want %d", len(padded), tt.length+tt.wantPad)
			}

			if len(padded)%aes.BlockSize != 0 {
				t.Fatalf("padded length %d not block aligned", len(padded))
			}

			got, err := pkcs7Unpad(padded, aes.BlockSize)
			if err != nil {
				t.Fatalf("pkcs7Unpad() error = %v", err)
			}

			if len(got) != tt.length {
				t.Errorf("unpadded length = %d, want %d", len(got), tt.length)
			}
		})
	}
}

func TestPkcs7UnpadRejectsGarbage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"misaligned", make([]byte, 7)},
		{"zero pad byte", append(bytes.Repeat([]byte{1}, 15), 0)},
		{"pad larger than block", append(bytes.Repeat([]byte{1}, 15), 17)},
		{"inconsistent pad bytes", append(bytes.Repeat([]byte{3}, 14), 2, 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := pkcs7Unpad(tt.data, aes.BlockSize); !errors.Is(err, ErrAuthenticationFailed) {
				t.Errorf("pkcs7Unpad() error = %v, want ErrAuthenticationFailed", err)
			}
		})
	}
}

func TestChunkCipherChaining(t *testing.T) {
	t.Parallel()

	key := bytes.Repeat([]byte{0x42}, 32)
	iv := bytes.Repeat([]byte{0x24}, aes.BlockSize)

	enc, err := newChunkEncrypter(key, iv)
	if err != nil {
		t.Fatal(err)
	}

	// Two identical chunks must not encrypt identically: the chaining
	// state carries across chunk boundaries.
	chunk := bytes.Repeat([]byte{0xaa}, 64)

	first := make([]byte, len(chunk))
	if err := enc.transform(first, chunk); err != nil {
		t.Fatal(err)
	}

	second := make([]byte, len(chunk))
	if err := enc.transform(second, chunk); err != nil {
		t.Fatal(err)
	}

	if bytes.Equal(first, second) {
		t.Error("chaining state not carried across chunks")
	}

	// Decrypting both chunks through one decrypter recovers the input.
	dec, err := newChunkDecrypter(key, iv)
	if err != nil {
		t.Fatal(err)
	}

	for _, ct := range [][]byte{first, second} {
		plain := make([]byte, len(ct))
		if err := dec.transform(plain, ct); err != nil {
			t.Fatal(err)
		}

		if !bytes.Equal(plain, chunk) {
			t.Error("chained decryption mismatch")
		}
	}
}

func TestChunkCipherRejectsMisalignedChunk(t *testing.T) {
	t.Parallel()

	enc, err := newChunkEncrypter(make([]byte, 32), make([]byte, aes.BlockSize))
	if err != nil {
		t.Fatal(err)
	}

	if err := enc.transform(nil, make([]byte, 10)); !errors.Is(err, ErrInternal) {
		t.Errorf("transform(10 bytes) error = %v, want ErrInternal", err)
	}
}

func TestTagWriter(t *testing.T) {
	t.Parallel()

	key := bytes.Repeat([]byte{7}, 32)

	first := newTagWriter(key)
	first.update([]byte("hello "))
	first.update([]byte("world"))

	second := newTagWriter(key)
	second.update([]byte("hello world"))

	if !second.verify(first.finalize()) {
		t.Error("split updates changed the tag")
	}

	third := newTagWriter(key)
	third.update([]byte("hello worlD"))

	fourth := newTagWriter(key)
	fourth.update([]byte("hello world"))

	if fourth.verify(third.finalize()) {
		t.Error("different messages verified against each other")
	}
}

func TestTagWriterUpdateAfterFinalizePanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("update after finalize should panic")
		}
	}()

	tag := newTagWriter(make([]byte, 32))
	tag.finalize()
	tag.update([]byte("late"))
}
