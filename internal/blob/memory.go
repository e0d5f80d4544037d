package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"cloudvault-backend/internal/common"
)

// MemoryStore keeps blobs in memory. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Write(ctx context.Context, name string, r io.Reader) (int64, error) {
	if err := validName(name); err != nil {
		return 0, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read content: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.blobs[name]; exists {
		return 0, fmt.Errorf("blob %q: %w", name, common.ErrConflict)
	}
	m.blobs[name] = data
	return int64(len(data)), nil
}

func (m *MemoryStore) Exists(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.blobs[name]
	return exists, nil
}

func (m *MemoryStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, exists := m.blobs[name]
	if !exists {
		return nil, fmt.Errorf("blob %q: %w", name, common.ErrNotFound)
	}
	return readSeekNopCloser{bytes.NewReader(data)}, nil
}

func (m *MemoryStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, name)
	return nil
}

// Len returns the number of stored blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
