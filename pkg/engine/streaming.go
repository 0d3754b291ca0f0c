package engine

import (
	"bytes"
	"fmt"

	"github.com/tink-crypto/tink-go/v2/insecurecleartextkeyset"
	"github.com/tink-crypto/tink-go/v2/keyset"
	gcmhkdfpb "github.com/tink-crypto/tink-go/v2/proto/aes_gcm_hkdf_streaming_go_proto"
	commonpb "github.com/tink-crypto/tink-go/v2/proto/common_go_proto"
	tinkpb "github.com/tink-crypto/tink-go/v2/proto/tink_go_proto"

	"google.golang.org/protobuf/proto"
)

// Version 2 cipher parameters: AES-256-GCM-HKDF streaming AEAD with 64 KiB
// ciphertext segments, each independently authenticated.
const (
	streamingSegmentSize = 64 * 1024
	streamingKeySize     = 32
)

// streamingKeyHandle wraps raw derived key bytes into a Tink keyset handle
// for the streaming AEAD primitive.
func streamingKeyHandle(key []byte) (*keyset.Handle, error) {
	if len(key) != streamingKeySize {
		return nil, fmt.Errorf("%w: streaming key is %d bytes, want %d", ErrInternal, len(key), streamingKeySize)
	}

	streamingKey := &gcmhkdfpb.AesGcmHkdfStreamingKey{
		Version: 0,
		Params: &gcmhkdfpb.AesGcmHkdfStreamingParams{
			CiphertextSegmentSize: streamingSegmentSize,
			DerivedKeySize:        streamingKeySize,
			HkdfHashType:          commonpb.HashType_SHA256,
		},
		KeyValue: key,
	}

	serializedKey, err := proto.Marshal(streamingKey)
	if err != nil {
		return nil, fmt.Errorf("%w: serializing streaming key: %w", ErrInternal, err)
	}

	keyData := &tinkpb.KeyData{
		TypeUrl:         "type.googleapis.com/google.crypto.tink.AesGcmHkdfStreamingKey",
		Value:           serializedKey,
		KeyMaterialType: tinkpb.KeyData_SYMMETRIC,
	}

	keySet := &tinkpb.Keyset{
		PrimaryKeyId: 1,
		Key: []*tinkpb.Keyset_Key{
			{
				KeyData:          keyData,
				Status:           tinkpb.KeyStatusType_ENABLED,
				KeyId:            1,
				OutputPrefixType: tinkpb.OutputPrefixType_RAW,
			},
		},
	}

	serializedKeyset, err := proto.Marshal(keySet)
	if err != nil {
		return nil, fmt.Errorf("%w: serializing keyset: %w", ErrInternal, err)
	}

	handle, err := insecurecleartextkeyset.Read(
		keyset.NewBinaryReader(bytes.NewReader(serializedKeyset)))
	if err != nil {
		return nil, fmt.Errorf("%w: creating keyset handle: %w", ErrInternal, err)
	}

	return handle, nil
}
