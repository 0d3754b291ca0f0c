package kdf_test

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"io"
	"testing"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"

	"github.com/goseal/goseal/pkg/kdf"
	"github.com/goseal/goseal/pkg/secret"
)

// fastParams keeps test derivations cheap.
func fastParams() kdf.Params {
	return kdf.Params{Algorithm: kdf.AlgorithmPBKDF2, Version: 1, Iterations: 16}
}

func testSalt(b byte) []byte {
	salt := make([]byte, kdf.SaltSize)
	for i := range salt {
		salt[i] = b
	}

	return salt
}

func TestDeriveDeterministic(t *testing.T) {
	t.Parallel()

	first, err := kdf.Derive(secret.FromString("pw123"), testSalt(1), fastParams())
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}

	second, err := kdf.Derive(secret.FromString("pw123"), testSalt(1), fastParams())
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}

	if !bytes.Equal(first.Encryption.Bytes(), second.Encryption.Bytes()) {
		t.Error("encryption keys differ for identical inputs")
	}

	if !bytes.Equal(first.MAC.Bytes(), second.MAC.Bytes()) {
		t.Error("MAC keys differ for identical inputs")
	}
}

func TestDeriveSensitivity(t *testing.T) {
	t.Parallel()

	base, err := kdf.Derive(secret.FromString("pw123"), testSalt(1), fastParams())
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}

	tests := []struct {
		name     string
		password string
		salt     []byte
	}{
		{"password changed", "pw124", testSalt(1)},
		{"salt changed", "pw123", testSalt(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			other, err := kdf.Derive(secret.FromString(tt.password), tt.salt, fastParams())
			if err != nil {
				t.Fatalf("Derive() error = %v", err)
			}

			if bytes.Equal(base.Encryption.Bytes(), other.Encryption.Bytes()) {
				t.Error("encryption key unchanged")
			}
		})
	}
}

func TestDeriveKeySeparation(t *testing.T) {
	t.Parallel()

	keys, err := kdf.Derive(secret.FromString("pw123"), testSalt(1), fastParams())
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}

	if bytes.Equal(keys.Encryption.Bytes(), keys.MAC.Bytes()) {
		t.Error("encryption and MAC keys must differ")
	}

	if len(keys.Encryption.Bytes()) != kdf.KeySize || len(keys.MAC.Bytes()) != kdf.KeySize {
		t.Errorf("key sizes = %d/%d, want %d", keys.Encryption.Len(), keys.MAC.Len(), kdf.KeySize)
	}
}

func TestDeriveEmptyPassword(t *testing.T) {
	t.Parallel()

	_, err := kdf.Derive(secret.FromString(""), testSalt(1), fastParams())
	if !errors.Is(err, kdf.ErrEmptyPassword) {
		t.Errorf("Derive(empty) error = %v, want ErrEmptyPassword", err)
	}

	params := fastParams()
	params.AllowEmptyPassword = true

	if _, err := kdf.Derive(secret.FromString(""), testSalt(1), params); err != nil {
		t.Errorf("Derive(empty, allowed) error = %v", err)
	}
}

func TestDeriveBadSalt(t *testing.T) {
	t.Parallel()

	_, err := kdf.Derive(secret.FromString("pw"), []byte{1, 2, 3}, fastParams())
	if !errors.Is(err, kdf.ErrInvalidSalt) {
		t.Errorf("Derive(short salt) error = %v, want ErrInvalidSalt", err)
	}
}

func TestDeriveArgon2id(t *testing.T) {
	t.Parallel()

	params := kdf.Params{
		Algorithm:  kdf.AlgorithmArgon2id,
		Iterations: 1,
		Memory:     8 * 1024,
		Threads:    1,
	}

	keys, err := kdf.Derive(secret.FromString("pw123"), testSalt(1), params)
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}

	again, err := kdf.Derive(secret.FromString("pw123"), testSalt(1), params)
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}

	if !bytes.Equal(keys.Encryption.Bytes(), again.Encryption.Bytes()) {
		t.Error("Argon2id derivation not deterministic")
	}
}

// TestDeriveMatchesConstruction recomputes the version 1 derivation from its
// published building blocks. A change to the iteration handling, the hash, or
// the info strings breaks container compatibility and must fail here.
func TestDeriveMatchesConstruction(t *testing.T) {
	t.Parallel()

	password := "pw123"
	salt := testSalt(7)

	keys, err := kdf.Derive(secret.FromString(password), salt, fastParams())
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}

	master := pbkdf2.Key([]byte(password), salt, 16, kdf.KeySize, sha256.New)

	for _, tt := range []struct {
		info string
		got  []byte
	}{
		{"goseal/v1/enc", keys.Encryption.Bytes()},
		{"goseal/v1/mac", keys.MAC.Bytes()},
	} {
		want := make([]byte, kdf.KeySize)
		if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(tt.info)), want); err != nil {
			t.Fatal(err)
		}

		if !bytes.Equal(tt.got, want) {
			t.Errorf("key for info %q does not match the reference construction", tt.info)
		}
	}
}

// TestDeriveVersionScoped checks that the format version by itself changes
// the derived keys, even with identical password, salt, and cost settings.
func TestDeriveVersionScoped(t *testing.T) {
	t.Parallel()

	v1 := fastParams()

	v2 := fastParams()
	v2.Version = 2

	first, err := kdf.Derive(secret.FromString("pw123"), testSalt(1), v1)
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}

	second, err := kdf.Derive(secret.FromString("pw123"), testSalt(1), v2)
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}

	if bytes.Equal(first.Encryption.Bytes(), second.Encryption.Bytes()) {
		t.Error("encryption keys identical across versions")
	}

	if bytes.Equal(first.MAC.Bytes(), second.MAC.Bytes()) {
		t.Error("MAC keys identical across versions")
	}
}

func TestParamsForVersion(t *testing.T) {
	t.Parallel()

	v1, err := kdf.ParamsForVersion(1)
	if err != nil || v1.Algorithm != kdf.AlgorithmPBKDF2 {
		t.Errorf("ParamsForVersion(1) = %+v, %v", v1, err)
	}

	v2, err := kdf.ParamsForVersion(2)
	if err != nil || v2.Algorithm != kdf.AlgorithmArgon2id {
		t.Errorf("ParamsForVersion(2) = %+v, %v", v2, err)
	}

	if _, err := kdf.ParamsForVersion(99); err == nil {
		t.Error("ParamsForVersion(99) should fail")
	}
}

func TestZero(t *testing.T) {
	t.Parallel()

	keys, err := kdf.Derive(secret.FromString("pw123"), testSalt(1), fastParams())
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}

	enc := keys.Encryption.Bytes()
	keys.Zero()

	if !bytes.Equal(enc, make([]byte, kdf.KeySize)) {
		t.Error("Zero did not wipe the encryption key")
	}
}
