package engine

import (
	"errors"

	"github.com/goseal/goseal/pkg/container"
)

var (
	// ErrAuthenticationFailed is returned when the authentication tag does
	// not verify. A wrong password and a tampered container produce the
	// same failure.
	ErrAuthenticationFailed = errors.New("incorrect password or corrupted file")

	// ErrFileNotFound is returned when the input path does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrPermissionDenied is returned when a path cannot be opened or
	// created due to permissions.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidInput is returned for invalid caller-supplied parameters,
	// such as an empty password when policy forbids it.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIOFailure wraps read/write errors on the underlying streams. The
	// output must be treated as invalid; the engine does not retry.
	ErrIOFailure = errors.New("i/o failure")

	// ErrInternal indicates a broken invariant inside the engine.
	ErrInternal = errors.New("internal invariant violation")
)

// Format errors surfaced from the container package, re-exported so callers
// can match everything against one package.
var (
	ErrUnsupportedFormat = container.ErrUnsupportedFormat
	ErrTruncated         = container.ErrTruncated
)
