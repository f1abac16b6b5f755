// Package storage persists world snapshots and asset registries. The graph
// core never waits on it: saves are debounced and written in the background.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by Load when a world has no saved snapshot.
var ErrNotFound = errors.New("snapshot not found")

// Store is an opaque key-value store for encoded world snapshots.
type Store interface {
	Load(ctx context.Context, world string) ([]byte, error)
	Save(ctx context.Context, world string, data []byte) error
	Close() error
}

// Memory is a Store kept in process memory.
type Memory struct {
	mu    sync.RWMutex
	data  map[string][]byte
	saves int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, world string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.data[world]
	if !ok {
		return nil, fmt.Errorf("world %s: %w", world, ErrNotFound)
	}
	return append([]byte(nil), d...), nil
}

func (m *Memory) Save(_ context.Context, world string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[world] = append([]byte(nil), data...)
	m.saves++
	return nil
}

// Saves returns how many Save calls have completed.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func (m *Memory) Close() error { return nil }
