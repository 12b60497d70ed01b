package cas

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	ipfsapi "github.com/ipfs/go-ipfs-api"
)

// IPFSBlobstore stores blobs as single blocks on an IPFS node, so the node
// agrees byte-for-byte with the ids this package computes.
type IPFSBlobstore struct {
	shell *ipfsapi.Shell
}

func NewIPFSBlobstore(apiURL string) *IPFSBlobstore {
	return &IPFSBlobstore{shell: ipfsapi.NewShell(apiURL)}
}

func (s *IPFSBlobstore) Put(_ context.Context, id string, data []byte) error {
	if s == nil || s.shell == nil {
		return fmt.Errorf("ipfs blobstore is not initialized")
	}

	parsed, err := cid.Decode(id)
	if err != nil {
		return fmt.Errorf("decode content id %q: %w", id, err)
	}

	format := "raw"
	if parsed.Type() == cid.DagCBOR {
		format = "dag-cbor"
	}

	returned, err := s.shell.BlockPut(data, format, "sha2-256", -1)
	if err != nil {
		return fmt.Errorf("ipfs block put: %w", err)
	}
	if returned != id {
		return fmt.Errorf("ipfs node returned cid %s for expected %s", returned, id)
	}

	if err := s.shell.Pin(id); err != nil {
		return fmt.Errorf("ipfs pin %s: %w", id, err)
	}
	return nil
}

func (s *IPFSBlobstore) Get(_ context.Context, id string) ([]byte, error) {
	if s == nil || s.shell == nil {
		return nil, fmt.Errorf("ipfs blobstore is not initialized")
	}
	data, err := s.shell.BlockGet(id)
	if err != nil {
		return nil, fmt.Errorf("ipfs block get %s: %w", id, err)
	}
	return data, nil
}
