package storage

import (
	"context"
	"sync"
)

// Memory is an in-process Provider. Nothing survives a restart.
type Memory struct {
	mu     sync.Mutex
	data   map[string][]byte
	writes map[string]int
}

// NewMemory creates an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte), writes: make(map[string]int)}
}

// Get returns a copy of the value stored under key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value under key.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	m.writes[key]++
	return nil
}

// Remove deletes key.
func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Clear removes every listed key.
func (m *Memory) Clear(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		_ = m.Remove(ctx, k)
	}
	return nil
}

// Writes returns how many times Set was called for key.
func (m *Memory) Writes(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[key]
}
