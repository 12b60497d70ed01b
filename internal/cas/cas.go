// Package cas provides content-addressed storage for raw artifacts and
// structured records. Ids are CIDv1 strings: raw sha2-256 for plain bytes,
// dag-cbor over a canonical CBOR encoding for structured records, so
// identical input always yields the identical id.
package cas

import (
	"context"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var (
	// ErrPayloadTooLarge is fatal for the item; it is never worth retrying.
	ErrPayloadTooLarge = errors.New("payload exceeds size limit")

	// ErrNotFound reports a missing blob on Get.
	ErrNotFound = errors.New("content not found")
)

// Blobstore is the durable backend. Put must be idempotent: storing the same
// bytes twice under the same id is a no-op.
type Blobstore interface {
	Put(ctx context.Context, id string, data []byte) error
	Get(ctx context.Context, id string) ([]byte, error)
}

// Service wraps a Blobstore and owns id computation and verification.
type Service struct {
	blobs    Blobstore
	maxBytes int64
}

func New(blobs Blobstore, maxBytes int64) *Service {
	return &Service{blobs: blobs, maxBytes: maxBytes}
}

// Store persists raw bytes and returns their content id.
func (s *Service) Store(ctx context.Context, data []byte) (string, error) {
	if s == nil || s.blobs == nil {
		return "", fmt.Errorf("content store is not initialized")
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(data))
	}

	id, err := Sum(data)
	if err != nil {
		return "", err
	}
	if err := s.blobs.Put(ctx, id, data); err != nil {
		return "", fmt.Errorf("store %d bytes: %w", len(data), err)
	}
	return id, nil
}

// StoreStructured canonically encodes a map-like record as CBOR, persists the
// encoding, and returns its dag-cbor content id.
func (s *Service) StoreStructured(ctx context.Context, record any) (string, error) {
	if s == nil || s.blobs == nil {
		return "", fmt.Errorf("content store is not initialized")
	}

	encoded, err := encodeCanonical(record)
	if err != nil {
		return "", err
	}
	if s.maxBytes > 0 && int64(len(encoded)) > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(encoded))
	}

	id, err := sumWithCodec(encoded, cid.DagCBOR)
	if err != nil {
		return "", err
	}
	if err := s.blobs.Put(ctx, id, encoded); err != nil {
		return "", fmt.Errorf("store structured record: %w", err)
	}
	return id, nil
}

// Get retrieves previously stored bytes by content id.
func (s *Service) Get(ctx context.Context, id string) ([]byte, error) {
	if s == nil || s.blobs == nil {
		return nil, fmt.Errorf("content store is not initialized")
	}
	data, err := s.blobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Verify reports whether data hashes to the given raw content id.
func Verify(id string, data []byte) bool {
	computed, err := Sum(data)
	if err != nil {
		return false
	}
	return computed == id
}

// Sum computes the raw content id for a byte payload without storing it.
func Sum(data []byte) (string, error) {
	return sumWithCodec(data, cid.Raw)
}

func sumWithCodec(data []byte, codec uint64) (string, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("hash payload: %w", err)
	}
	return cid.NewCidV1(codec, mh).String(), nil
}

var cborEncMode cbor.EncMode

func init() {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cas: build canonical CBOR mode: %v", err))
	}
	cborEncMode = mode
}

func encodeCanonical(record any) ([]byte, error) {
	encoded, err := cborEncMode.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode structured record: %w", err)
	}
	return encoded, nil
}
