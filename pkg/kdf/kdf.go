// Package kdf derives symmetric key material from a password and a per-file
// salt. Each container format version pins one parameter set so that old
// containers remain decryptable after defaults change.
package kdf

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"

	"github.com/goseal/goseal/pkg/secret"
)

const (
	// SaltSize is the required salt length in bytes.
	SaltSize = 16

	// KeySize is the length of each derived key in bytes.
	KeySize = 32
)

// Algorithm identifies the password-stretching function.
type Algorithm byte

const (
	// AlgorithmPBKDF2 is PBKDF2 with HMAC-SHA256.
	AlgorithmPBKDF2 Algorithm = iota + 1
	// AlgorithmArgon2id is Argon2id.
	AlgorithmArgon2id
)

var (
	// ErrEmptyPassword is returned when the password is empty and the
	// parameters do not allow it.
	ErrEmptyPassword = errors.New("password must not be empty")

	// ErrInvalidSalt is returned when the salt has the wrong length.
	ErrInvalidSalt = errors.New("salt must be 16 bytes")

	// ErrUnknownAlgorithm is returned for an unrecognized Algorithm value.
	ErrUnknownAlgorithm = errors.New("unknown key derivation algorithm")
)

// Params selects the stretching function and its cost settings.
type Params struct {
	Algorithm Algorithm

	// Version is the container format version the keys are for. It scopes
	// the HKDF domain separation strings, so the same password and salt
	// yield unrelated keys across versions.
	Version byte

	// Iterations is the PBKDF2 iteration count, or the Argon2id pass count.
	Iterations uint32

	// Memory is the Argon2id memory cost in KiB. Ignored for PBKDF2.
	Memory uint32

	// Threads is the Argon2id parallelism. Ignored for PBKDF2.
	Threads uint8

	// AllowEmptyPassword permits deriving from an empty password.
	AllowEmptyPassword bool
}

// Pinned per-version parameter sets. Never change these for an existing
// version; add a new version instead.
const (
	pbkdf2Iterations = 100_000

	argon2Passes  = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// ParamsForVersion returns the parameter set pinned to a container format
// version.
func ParamsForVersion(version byte) (Params, error) {
	switch version {
	case 1:
		return Params{Algorithm: AlgorithmPBKDF2, Version: version, Iterations: pbkdf2Iterations}, nil
	case 2:
		return Params{
			Algorithm:  AlgorithmArgon2id,
			Version:    version,
			Iterations: argon2Passes,
			Memory:     argon2Memory,
			Threads:    argon2Threads,
		}, nil
	default:
		return Params{}, fmt.Errorf("%w: no parameters for version %d", ErrUnknownAlgorithm, version)
	}
}

// Keys is the derived key material for one stream operation: one encryption
// key and one independent MAC key. Zero both once the operation finishes.
type Keys struct {
	Encryption *secret.Text
	MAC        *secret.Text
}

// Zero wipes both keys.
func (k *Keys) Zero() {
	if k == nil {
		return
	}

	k.Encryption.Zero()
	k.MAC.Zero()
}

// Derive stretches password with salt into a master key and expands it into
// independent encryption and MAC keys. Deterministic for fixed inputs.
func Derive(password *secret.Text, salt []byte, params Params) (*Keys, error) {
	if password.Len() == 0 && !params.AllowEmptyPassword {
		return nil, ErrEmptyPassword
	}

	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidSalt, len(salt))
	}

	var master []byte

	switch params.Algorithm {
	case AlgorithmPBKDF2:
		master = pbkdf2.Key(password.Bytes(), salt, int(params.Iterations), KeySize, sha256.New)
	case AlgorithmArgon2id:
		master = argon2.IDKey(password.Bytes(), salt, params.Iterations, params.Memory, params.Threads, KeySize)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, params.Algorithm)
	}

	defer secret.Wipe(master)

	encKey, err := expand(master, fmt.Sprintf("goseal/v%d/enc", params.Version))
	if err != nil {
		return nil, err
	}

	macKey, err := expand(master, fmt.Sprintf("goseal/v%d/mac", params.Version))
	if err != nil {
		secret.Wipe(encKey)

		return nil, err
	}

	return &Keys{
		Encryption: secret.FromBytes(encKey),
		MAC:        secret.FromBytes(macKey),
	}, nil
}

// expand derives one subkey from the master key with a domain-separating
// info string.
func expand(master []byte, info string) ([]byte, error) {
	reader := hkdf.New(sha256.New, master, nil, []byte(info))
	key := make([]byte, KeySize)

	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("expanding %s key: %w", info, err)
	}

	return key, nil
}
