package engine

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// chunkCipher transforms block-aligned chunks with AES-256-CBC. The BlockMode
// carries the chaining state, so chunks must pass through in stream order and
// cannot be transformed in isolation. One chunkCipher serves exactly one
// container; the IV is never reused.
type chunkCipher struct {
	mode cipher.BlockMode
}

func newChunkEncrypter(key, iv []byte) (*chunkCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: creating cipher: %w", ErrInternal, err)
	}

	return &chunkCipher{mode: cipher.NewCBCEncrypter(block, iv)}, nil
}

func newChunkDecrypter(key, iv []byte) (*chunkCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: creating cipher: %w", ErrInternal, err)
	}

	return &chunkCipher{mode: cipher.NewCBCDecrypter(block, iv)}, nil
}

// transform encrypts or decrypts src into dst, advancing the chaining state.
// dst and src may be the same slice.
func (c *chunkCipher) transform(dst, src []byte) error {
	if len(src)%aes.BlockSize != 0 {
		return fmt.Errorf("%w: chunk of %d bytes is not block aligned", ErrInternal, len(src))
	}

	c.mode.CryptBlocks(dst, src)

	return nil
}

// pkcs7Pad pads data up to the next multiple of blockSize. A full padding
// block is added when data is already aligned, so the original length always
// recovers.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padText := bytes.Repeat([]byte{byte(padding)}, padding)

	return append(data, padText...)
}

// pkcs7Unpad strips the padding from the final block of data.
// Callers must verify the authentication tag first; a padding error after a
// valid tag cannot happen short of an engine bug.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	length := len(data)
	if length == 0 || length%blockSize != 0 {
		return nil, fmt.Errorf("%w: padded data of %d bytes", ErrAuthenticationFailed, length)
	}

	padding := int(data[length-1])
	if padding == 0 || padding > blockSize {
		return nil, fmt.Errorf("%w: bad padding", ErrAuthenticationFailed)
	}

	for i := length - padding; i < length; i++ {
		if data[i] != byte(padding) {
			return nil, fmt.Errorf("%w: bad padding", ErrAuthenticationFailed)
		}
	}

	return data[:length-padding], nil
}
