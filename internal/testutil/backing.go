package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"sync"
)

// MemBacking is an in-memory blob store for queue tests.
//
// Setting FailWrites or FailReads makes the corresponding calls return that
// error until it is cleared.
type MemBacking struct {
	mu    sync.Mutex
	blobs map[string][]byte

	FailWrites error
	FailReads  error

	writes  int
	deletes int
}

// NewMemBacking returns an empty store.
func NewMemBacking() *MemBacking {
	return &MemBacking{blobs: make(map[string][]byte)}
}

func (m *MemBacking) ReadBlob(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReads != nil {
		return nil, m.FailReads
	}
	b, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob %q: %w", key, fs.ErrNotExist)
	}
	return append([]byte(nil), b...), nil
}

func (m *MemBacking) WriteBlob(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.blobs[key] = append([]byte(nil), data...)
	m.writes++
	return nil
}

func (m *MemBacking) DeleteBlob(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		return fmt.Errorf("blob %q: %w", key, fs.ErrNotExist)
	}
	delete(m.blobs, key)
	m.deletes++
	return nil
}

// Has reports whether key is stored.
func (m *MemBacking) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok
}

// Get returns the stored bytes for key, or nil.
func (m *MemBacking) Get(key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.blobs[key]...)
}

// Put stores data without counting it as a write.
func (m *MemBacking) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
}

// Writes counts successful WriteBlob calls.
func (m *MemBacking) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Deletes counts DeleteBlob calls that removed something.
func (m *MemBacking) Deletes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes
}
