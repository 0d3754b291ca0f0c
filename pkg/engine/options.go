package engine

import (
	"crypto/aes"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/goseal/goseal/pkg/container"
)

// Options configures one pipeline run. The zero value is not usable; use
// defaultOptions via Run's variadic Option parameters.
type Options struct {
	// Version selects the container format written on encryption. Ignored
	// on decryption, where the header decides.
	Version byte `validate:"oneof=1 2"`

	// ChunkSize is the plaintext bytes processed per iteration. Must be a
	// multiple of the cipher block size. Any chunk size decrypts any
	// container; it bounds memory, not the format.
	ChunkSize int `validate:"gte=1024,lte=16777216"`

	// AllowEmptyPassword permits encrypting with an empty password.
	AllowEmptyPassword bool
}

// Option mutates Options.
type Option func(*Options)

// WithVersion selects the container format version for encryption.
func WithVersion(version byte) Option {
	return func(o *Options) { o.Version = version }
}

// WithChunkSize overrides the per-iteration chunk size.
func WithChunkSize(size int) Option {
	return func(o *Options) { o.ChunkSize = size }
}

// WithAllowEmptyPassword disables the empty-password rejection.
func WithAllowEmptyPassword() Option {
	return func(o *Options) { o.AllowEmptyPassword = true }
}

func defaultOptions() Options {
	return Options{
		Version:   container.VersionCBC,
		ChunkSize: DefaultChunkSize,
	}
}

// validate checks the assembled options against the struct tags plus the
// block alignment constraint.
func (o Options) validate() error {
	if err := validator.New().Struct(o); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if o.ChunkSize%aes.BlockSize != 0 {
		return fmt.Errorf("%w: chunk size %d is not a multiple of %d", ErrInvalidInput, o.ChunkSize, aes.BlockSize)
	}

	return nil
}
