package credentials

import (
	"context"
	"sync"
)

type memoryEntry struct {
	value string
	attrs Attributes
}

// MemoryBackend keeps values for the lifetime of the process. It stands in
// for session-scoped storage.
type MemoryBackend struct {
	name    string
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(name string) *MemoryBackend {
	return &MemoryBackend{
		name:    name,
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e.value, ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, key, value string, attrs Attributes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, attrs: attrs}
	return nil
}

func (m *MemoryBackend) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Attributes returns the attributes key was last stored with.
func (m *MemoryBackend) Attributes(key string) (Attributes, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e.attrs, ok
}

func (m *MemoryBackend) Name() string {
	return "MemoryBackend(" + m.name + ")"
}
