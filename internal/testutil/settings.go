package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"sync"
)

// MemSettings is an in-memory string settings store.
type MemSettings struct {
	mu      sync.Mutex
	values  map[string]string
	flushes int

	FailWrites error
}

func NewMemSettings() *MemSettings {
	return &MemSettings{values: make(map[string]string)}
}

func (m *MemSettings) GetString(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", fmt.Errorf("setting %q: %w", key, fs.ErrNotExist)
	}
	return v, nil
}

func (m *MemSettings) SetString(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.values[key] = value
	return nil
}

func (m *MemSettings) Flush(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return nil
}

// Flushes counts Flush calls.
func (m *MemSettings) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}
