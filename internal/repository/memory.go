package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryKV is an in-memory implementation of KVStore.
// Use this for development/testing or throwaway single-instance runs.
type MemoryKV struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{entries: make(map[string][]byte)}
}

// Get retrieves a copy of the value stored under key.
func (m *MemoryKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.entries[key]
	if !exists {
		return nil, false, nil
	}

	result := make([]byte, len(value))
	copy(result, value)
	return result, true, nil
}

// Put stores a copy of value under key.
func (m *MemoryKV) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	m.entries[key] = valueCopy
	return nil
}

// Delete removes key.
func (m *MemoryKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Keys lists keys with the given prefix.
func (m *MemoryKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := []string{}
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Stats returns the entry count and total value size.
func (m *MemoryKV) Stats(ctx context.Context) (map[string]interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var size int
	for _, v := range m.entries {
		size += len(v)
	}
	return map[string]interface{}{
		"total_entries": len(m.entries),
		"size_bytes":    size,
	}, nil
}

// Ping always succeeds.
func (m *MemoryKV) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryKV) Close() error { return nil }

// Ensure MemoryKV implements KVStore
var _ KVStore = (*MemoryKV)(nil)
