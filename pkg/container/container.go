// Package container defines the on-disk layout of an encrypted file and the
// encoding/decoding of its structural fields.
//
// Every container starts with a common prefix:
//
//	[magic "GOSL" 4B] [version 1B] [salt 16B]
//
// Version 1 (chained CBC with a trailing HMAC) continues with:
//
//	[iv 16B] [ciphertext, a multiple of 16B] [tag 32B]
//
// Version 2 (streaming AEAD) continues directly with the AEAD ciphertext,
// which carries its own framing and per-segment authentication:
//
//	[streaming AEAD ciphertext]
//
// The magic and version must validate before any other field is trusted.
package container

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Magic identifies a goseal container.
const Magic = "GOSL"

// Supported format versions.
const (
	// VersionCBC is AES-256-CBC with an encrypt-then-MAC HMAC-SHA256 tag.
	VersionCBC byte = 1

	// VersionStreaming is AES-256-GCM-HKDF streaming AEAD.
	VersionStreaming byte = 2
)

// Field sizes in bytes.
const (
	MagicSize = len(Magic)
	SaltSize  = 16
	IVSize    = 16
	TagSize   = 32

	prefixSize = MagicSize + 1 + SaltSize
)

var (
	// ErrUnsupportedFormat indicates a bad magic value or an unrecognized
	// format version.
	ErrUnsupportedFormat = errors.New("not a goseal container or unsupported version")

	// ErrTruncated indicates fewer bytes than the format requires.
	ErrTruncated = errors.New("container is truncated")
)

// Header holds the structural fields preceding the ciphertext.
type Header struct {
	Version byte
	Salt    []byte

	// IV is set for VersionCBC only.
	IV []byte
}

// Size returns the encoded header length for a version.
func Size(version byte) (int, error) {
	switch version {
	case VersionCBC:
		return prefixSize + IVSize, nil
	case VersionStreaming:
		return prefixSize, nil
	default:
		return 0, fmt.Errorf("%w: version %d", ErrUnsupportedFormat, version)
	}
}

// Encode serializes the header. The returned bytes are also the exact prefix
// bound into the authentication tag.
func (h Header) Encode() ([]byte, error) {
	size, err := Size(h.Version)
	if err != nil {
		return nil, err
	}

	if len(h.Salt) != SaltSize {
		return nil, fmt.Errorf("%w: salt is %d bytes, want %d", ErrUnsupportedFormat, len(h.Salt), SaltSize)
	}

	if h.Version == VersionCBC && len(h.IV) != IVSize {
		return nil, fmt.Errorf("%w: iv is %d bytes, want %d", ErrUnsupportedFormat, len(h.IV), IVSize)
	}

	out := make([]byte, 0, size)
	out = append(out, Magic...)
	out = append(out, h.Version)
	out = append(out, h.Salt...)

	if h.Version == VersionCBC {
		out = append(out, h.IV...)
	}

	return out, nil
}

// Decode reads and validates a header from r. It returns the parsed header
// together with the raw bytes consumed, so callers can bind them into the
// authentication tag.
func Decode(r io.Reader) (Header, []byte, error) {
	raw := make([]byte, prefixSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Header{}, nil, readErr(err, "header")
	}

	if !bytes.Equal(raw[:MagicSize], []byte(Magic)) {
		return Header{}, nil, fmt.Errorf("%w: bad magic", ErrUnsupportedFormat)
	}

	header := Header{
		Version: raw[MagicSize],
		Salt:    append([]byte(nil), raw[MagicSize+1:prefixSize]...),
	}

	switch header.Version {
	case VersionCBC:
		iv := make([]byte, IVSize)
		if _, err := io.ReadFull(r, iv); err != nil {
			return Header{}, nil, readErr(err, "iv")
		}

		header.IV = iv
		raw = append(raw, iv...)
	case VersionStreaming:
	default:
		return Header{}, nil, fmt.Errorf("%w: version %d", ErrUnsupportedFormat, header.Version)
	}

	return header, raw, nil
}

// readErr maps short reads to ErrTruncated and keeps real I/O errors intact.
func readErr(err error, field string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: incomplete %s", ErrTruncated, field)
	}

	return fmt.Errorf("reading %s: %w", field, err)
}
