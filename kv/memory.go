package kv

import (
	"context"
	"maps"
	"sync"
)

type entry struct {
	value string
	meta  Metadata
}

// Memory is an in-process Store. The zero value is not usable; use
// NewMemory.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return "", ErrNotFound
	}

	return e.value, nil
}

func (m *Memory) Put(_ context.Context, key, value string, meta Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{value: value, meta: maps.Clone(meta)}

	return nil
}

func (m *Memory) Metadata(_ context.Context, key string) (Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}

	return maps.Clone(e.meta), nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}
