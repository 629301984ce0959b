package chunkstore

import (
	"fmt"
	"sync"

	"rxguard-go/internal/guard"
)

// MemoryStore is an in-memory implementation of Store, useful for
// testing. This implementation is safe for concurrent use.
type MemoryStore struct {
	chunks map[string][]byte
	mu     sync.RWMutex
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory chunk store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[string][]byte)}
}

func (m *MemoryStore) Has(hash string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.chunks[hash]
	return ok
}

func (m *MemoryStore) Put(hash string, ciphertext []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chunks[hash]; ok {
		return nil
	}
	stored := make([]byte, len(ciphertext))
	copy(stored, ciphertext)
	m.chunks[hash] = stored
	return nil
}

func (m *MemoryStore) Get(hash string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.chunks[hash]
	if !ok {
		return nil, fmt.Errorf("%w: chunk %s", guard.ErrNotFound, hash)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryStore) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}

// Delete removes a chunk if present. Only used by tests to simulate
// lost chunk files.
func (m *MemoryStore) Delete(hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, hash)
}
