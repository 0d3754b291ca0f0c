package engine

import (
	"crypto/aes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tink-crypto/tink-go/v2/streamingaead"

	"github.com/goseal/goseal/internal/fileutil"
	"github.com/goseal/goseal/pkg/container"
	"github.com/goseal/goseal/pkg/kdf"
	"github.com/goseal/goseal/pkg/secret"
)

// Action selects the direction of a pipeline run.
type Action int

const (
	// Encrypt produces a container from plaintext.
	Encrypt Action = iota + 1
	// Decrypt verifies a container and recovers the plaintext.
	Decrypt
)

// String implements fmt.Stringer.
func (a Action) String() string {
	switch a {
	case Encrypt:
		return "encrypt"
	case Decrypt:
		return "decrypt"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Run processes in into out in a single pass, holding one chunk plus fixed
// state in memory. It returns the number of plaintext bytes consumed
// (Encrypt) or produced (Decrypt).
//
// On Decrypt, plaintext reaching out before the final tag verifies is
// provisional: if Run returns an error, everything written must be discarded.
// RunFile does that automatically; stream callers are responsible for it.
//
// Derived key material lives only for the duration of the call and is wiped
// on every exit path. The caller keeps ownership of password.
func Run(action Action, password *secret.Text, in io.Reader, out io.Writer, opts ...Option) (int64, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if err := options.validate(); err != nil {
		return 0, err
	}

	switch action {
	case Encrypt:
		return encrypt(password, in, out, options)
	case Decrypt:
		return decrypt(password, in, out, options)
	default:
		return 0, fmt.Errorf("%w: unknown action %d", ErrInvalidInput, action)
	}
}

// RunFile is Run with path resolution and atomic output: the result is
// written to a temporary file next to outPath and renamed into place only
// after the whole operation, including tag verification, succeeded. No
// output file appears on failure.
func RunFile(action Action, password *secret.Text, inPath, outPath string, opts ...Option) (n int64, err error) {
	inFile, err := os.Open(filepath.Clean(inPath))
	if err != nil {
		return 0, pathErr("opening input", err)
	}
	defer inFile.Close()

	tc, err := fileutil.NewTempContext(inPath, outPath)
	if err != nil {
		return 0, pathErr("preparing output", err)
	}

	defer tc.CleanupOnError(&err)

	n, err = Run(action, password, inFile, tc.TmpFile, opts...)
	if err != nil {
		return 0, err
	}

	const ownerReadWrite = 0o600

	if err = tc.Commit(ownerReadWrite); err != nil {
		return 0, fmt.Errorf("%w: finalizing output: %w", ErrIOFailure, err)
	}

	return n, nil
}

// encrypt writes a fresh container: header, chained ciphertext chunks, final
// padded block, trailing tag (version 1) or streaming AEAD body (version 2).
func encrypt(password *secret.Text, in io.Reader, out io.Writer, options Options) (int64, error) {
	salt := make([]byte, container.SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return 0, fmt.Errorf("%w: generating salt: %w", ErrInternal, err)
	}

	header := container.Header{Version: options.Version, Salt: salt}

	if options.Version == container.VersionCBC {
		header.IV = make([]byte, container.IVSize)
		if _, err := io.ReadFull(rand.Reader, header.IV); err != nil {
			return 0, fmt.Errorf("%w: generating IV: %w", ErrInternal, err)
		}
	}

	raw, err := header.Encode()
	if err != nil {
		return 0, err
	}

	keys, err := deriveKeys(password, header, options)
	if err != nil {
		return 0, err
	}
	defer keys.Zero()

	if _, err := out.Write(raw); err != nil {
		return 0, fmt.Errorf("%w: writing header: %w", ErrIOFailure, err)
	}

	if header.Version == container.VersionStreaming {
		return encryptStreaming(keys, raw, in, out, options)
	}

	return encryptCBC(keys, header, raw, in, out, options)
}

// decrypt validates the header, then dispatches on the embedded version.
func decrypt(password *secret.Text, in io.Reader, out io.Writer, options Options) (int64, error) {
	src := &trackingReader{r: in}

	header, raw, err := container.Decode(src)
	if err != nil {
		if errors.Is(err, container.ErrTruncated) || errors.Is(err, container.ErrUnsupportedFormat) {
			return 0, err
		}

		return 0, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	keys, err := deriveKeys(password, header, options)
	if err != nil {
		return 0, err
	}
	defer keys.Zero()

	if header.Version == container.VersionStreaming {
		return decryptStreaming(keys, raw, src, out, options)
	}

	return decryptCBC(keys, header, raw, src, out, options)
}

// deriveKeys stretches the password with the parameters pinned to the
// container version.
func deriveKeys(password *secret.Text, header container.Header, options Options) (*kdf.Keys, error) {
	params, err := kdf.ParamsForVersion(header.Version)
	if err != nil {
		return nil, err
	}

	params.AllowEmptyPassword = options.AllowEmptyPassword

	keys, err := kdf.Derive(password, header.Salt, params)
	if err != nil {
		if errors.Is(err, kdf.ErrEmptyPassword) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}

		return nil, fmt.Errorf("%w: deriving keys: %w", ErrInternal, err)
	}

	return keys, nil
}

func encryptCBC(keys *kdf.Keys, header container.Header, raw []byte, in io.Reader, out io.Writer, options Options) (int64, error) {
	enc, err := newChunkEncrypter(keys.Encryption.Bytes(), header.IV)
	if err != nil {
		return 0, err
	}

	tag := newTagWriter(keys.MAC.Bytes())
	tag.update(raw)

	buf := getBuffer(options.ChunkSize)
	defer putBuffer(buf)

	var total int64

	for {
		n, readErr := io.ReadFull(in, buf)

		switch {
		case readErr == nil:
			if err := enc.transform(buf, buf); err != nil {
				return total, err
			}

			tag.update(buf)

			if _, err := out.Write(buf); err != nil {
				return total, fmt.Errorf("%w: writing ciphertext: %w", ErrIOFailure, err)
			}

			total += int64(n)

		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
			// Final, possibly empty chunk: pad to a full block so the
			// exact plaintext length survives the round trip.
			final := pkcs7Pad(buf[:n], aes.BlockSize)

			if err := enc.transform(final, final); err != nil {
				return total, err
			}

			tag.update(final)

			if _, err := out.Write(final); err != nil {
				return total, fmt.Errorf("%w: writing final chunk: %w", ErrIOFailure, err)
			}

			total += int64(n)

			if _, err := out.Write(tag.finalize()); err != nil {
				return total, fmt.Errorf("%w: writing authentication tag: %w", ErrIOFailure, err)
			}

			return total, nil

		default:
			return total, fmt.Errorf("%w: reading plaintext: %w", ErrIOFailure, readErr)
		}
	}
}

// decryptCBC streams ciphertext through the chained cipher while holding back
// the trailing tag plus the final padded block, so that the tag always
// verifies before the padding is interpreted. Plaintext written along the way
// is provisional until Run returns nil.
func decryptCBC(keys *kdf.Keys, header container.Header, raw []byte, in io.Reader, out io.Writer, options Options) (int64, error) {
	dec, err := newChunkDecrypter(keys.Encryption.Bytes(), header.IV)
	if err != nil {
		return 0, err
	}

	tag := newTagWriter(keys.MAC.Bytes())
	tag.update(raw)

	buf := getBuffer(options.ChunkSize)
	defer putBuffer(buf)

	// holdback covers the candidate tag and the final padded block.
	const holdback = container.TagSize + aes.BlockSize

	carry := make([]byte, 0, options.ChunkSize+holdback+aes.BlockSize)

	var written int64

	for {
		n, readErr := in.Read(buf)
		if n > 0 {
			carry = append(carry, buf[:n]...)

			if avail := len(carry) - holdback; avail >= aes.BlockSize {
				processLen := avail - avail%aes.BlockSize
				chunk := carry[:processLen]

				tag.update(chunk)

				if err := dec.transform(chunk, chunk); err != nil {
					return written, err
				}

				if _, err := out.Write(chunk); err != nil {
					return written, fmt.Errorf("%w: writing plaintext: %w", ErrIOFailure, err)
				}

				written += int64(processLen)
				carry = append(carry[:0], carry[processLen:]...)
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return written, fmt.Errorf("%w: reading ciphertext: %w", ErrIOFailure, readErr)
		}
	}

	if len(carry) < holdback {
		return written, fmt.Errorf("%w: missing final chunk or tag", container.ErrTruncated)
	}

	rest := carry[:len(carry)-container.TagSize]
	expected := carry[len(carry)-container.TagSize:]

	if len(rest)%aes.BlockSize != 0 {
		return written, fmt.Errorf("%w: ciphertext is not block aligned", container.ErrTruncated)
	}

	tag.update(rest)

	if !tag.verify(expected) {
		return written, ErrAuthenticationFailed
	}

	if err := dec.transform(rest, rest); err != nil {
		return written, err
	}

	final, err := pkcs7Unpad(rest, aes.BlockSize)
	if err != nil {
		return written, err
	}

	if _, err := out.Write(final); err != nil {
		return written, fmt.Errorf("%w: writing plaintext: %w", ErrIOFailure, err)
	}

	return written + int64(len(final)), nil
}

func encryptStreaming(keys *kdf.Keys, raw []byte, in io.Reader, out io.Writer, options Options) (int64, error) {
	handle, err := streamingKeyHandle(keys.Encryption.Bytes())
	if err != nil {
		return 0, err
	}

	primitive, err := streamingaead.New(handle)
	if err != nil {
		return 0, fmt.Errorf("%w: creating streaming AEAD: %w", ErrInternal, err)
	}

	// The raw header doubles as associated data, binding magic, version and
	// salt into every segment tag.
	writer, err := primitive.NewEncryptingWriter(out, raw)
	if err != nil {
		return 0, fmt.Errorf("%w: creating encrypting writer: %w", ErrIOFailure, err)
	}

	buf := getBuffer(options.ChunkSize)
	defer putBuffer(buf)

	var total int64

	for {
		n, readErr := in.Read(buf)
		if n > 0 {
			if _, err := writer.Write(buf[:n]); err != nil {
				return total, fmt.Errorf("%w: writing ciphertext: %w", ErrIOFailure, err)
			}

			total += int64(n)
		}

		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return total, fmt.Errorf("%w: reading plaintext: %w", ErrIOFailure, readErr)
		}
	}

	if err := writer.Close(); err != nil {
		return total, fmt.Errorf("%w: finalizing ciphertext: %w", ErrIOFailure, err)
	}

	return total, nil
}

func decryptStreaming(keys *kdf.Keys, raw []byte, src *trackingReader, out io.Writer, options Options) (int64, error) {
	handle, err := streamingKeyHandle(keys.Encryption.Bytes())
	if err != nil {
		return 0, err
	}

	primitive, err := streamingaead.New(handle)
	if err != nil {
		return 0, fmt.Errorf("%w: creating streaming AEAD: %w", ErrInternal, err)
	}

	reader, err := primitive.NewDecryptingReader(src, raw)
	if err != nil {
		return 0, src.classify(err)
	}

	buf := getBuffer(options.ChunkSize)
	defer putBuffer(buf)

	var written int64

	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("%w: writing plaintext: %w", ErrIOFailure, err)
			}

			written += int64(n)
		}

		if errors.Is(readErr, io.EOF) {
			return written, nil
		}

		if readErr != nil {
			return written, src.classify(readErr)
		}
	}
}

// trackingReader remembers the last error the underlying stream produced, so
// failures surfacing through the AEAD layer can be told apart: a real read
// error is an I/O failure, everything else is an authentication failure.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil {
		t.err = err
	}

	return n, err
}

func (t *trackingReader) classify(err error) error {
	if t.err != nil && !errors.Is(t.err, io.EOF) {
		return fmt.Errorf("%w: reading ciphertext: %w", ErrIOFailure, t.err)
	}

	return fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
}

// pathErr maps filesystem errors onto the engine taxonomy.
func pathErr(op string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s: %w", ErrFileNotFound, op, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s: %w", ErrPermissionDenied, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrIOFailure, op, err)
	}
}
