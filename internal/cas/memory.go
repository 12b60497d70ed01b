package cas

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBlobstore keeps blobs in process memory. Used by tests and by local
// runs without an IPFS node.
type MemoryBlobstore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryBlobstore() *MemoryBlobstore {
	return &MemoryBlobstore{blobs: make(map[string][]byte)}
}

func (m *MemoryBlobstore) Put(_ context.Context, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.blobs[id]; exists {
		return nil
	}
	m.blobs[id] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBlobstore) Get(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return append([]byte(nil), data...), nil
}

// Len reports the number of distinct blobs stored.
func (m *MemoryBlobstore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
