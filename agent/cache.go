package agent

import (
	"context"
	"sync"
)

// Cache holds session snapshots by key. The store package provides a
// SQLite-backed implementation.
type Cache[S any] interface {
	Set(ctx context.Context, key string, val S) error
	Get(ctx context.Context, key string) (S, bool, error)
	Del(ctx context.Context, key string) error
}

// MemoryCache keeps values in a map for the life of the process.
type MemoryCache[S any] struct {
	mu      sync.RWMutex
	entries map[string]S
}

func NewMemoryCore[S any]() *MemoryCache[S] {
	return &MemoryCache[S]{entries: make(map[string]S)}
}

func (c *MemoryCache[S]) Set(_ context.Context, key string, val S) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = val
	return nil
}

func (c *MemoryCache[S]) Get(_ context.Context, key string) (S, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, found := c.entries[key]
	return val, found, nil
}

func (c *MemoryCache[S]) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryCache[S]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
