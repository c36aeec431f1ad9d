package store

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryBackend keeps values in process memory. Values never expire; expiry
// is the Store's job.
type MemoryBackend struct {
	items *cache.Cache
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: cache.New(cache.NoExpiration, 0)}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	start := time.Now()
	v, found := m.items.Get(key)
	observeOp(m.Name(), "get", start, nil)
	if !found {
		return "", false, nil
	}
	s, ok := v.(string)
	return s, ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, key, value string) error {
	start := time.Now()
	m.items.Set(key, value, cache.NoExpiration)
	observeOp(m.Name(), "set", start, nil)
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	start := time.Now()
	m.items.Delete(key)
	observeOp(m.Name(), "delete", start, nil)
	return nil
}

func (m *MemoryBackend) Close() error {
	m.items.Flush()
	return nil
}
