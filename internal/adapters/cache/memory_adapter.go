package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/zatekoja/feedbackinsights/internal/domain/providers"
)

// MemoryAdapter is an in-process CacheProvider used when Redis is disabled
// or unreachable. Entries are private to the process.
type MemoryAdapter struct {
	store *gocache.Cache
}

// NewMemoryAdapter creates an in-process cache. Expired entries are swept
// every cleanupInterval.
func NewMemoryAdapter(cleanupInterval time.Duration) providers.CacheProvider {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &MemoryAdapter{
		store: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// Get retrieves a value from cache
func (a *MemoryAdapter) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := a.store.Get(key)
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	data, ok := value.([]byte)
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	// Copy so callers cannot mutate the cached slice.
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Set stores a copy of value
func (a *MemoryAdapter) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data := make([]byte, len(value))
	copy(data, value)

	expiration := ttl
	if ttl <= 0 {
		expiration = gocache.NoExpiration
	}
	a.store.Set(key, data, expiration)
	return nil
}

// Delete removes a value from cache
func (a *MemoryAdapter) Delete(_ context.Context, key string) error {
	a.store.Delete(key)
	return nil
}

// Exists checks if a key exists in cache
func (a *MemoryAdapter) Exists(_ context.Context, key string) (bool, error) {
	_, ok := a.store.Get(key)
	return ok, nil
}
