package content

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps blobs in process memory under the same CIDs an IPFS node
// would assign.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, data []byte) (string, error) {
	c, err := ComputeCID(data)
	if err != nil {
		return "", err
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.mu.Lock()
	m.blobs[c.String()] = buf
	m.mu.Unlock()
	return URIFromCID(c), nil
}

func (m *MemoryStore) Get(_ context.Context, uri string) ([]byte, error) {
	c, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	data, ok := m.blobs[c.String()]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
