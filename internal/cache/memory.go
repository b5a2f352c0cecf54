package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/remoraproj/remora/internal/log"
)

// NewMemory initializes an in-memory cache for the given use case.
func NewMemory[K ~string, V any](useCase string, defaultExpiration, cleanupInterval time.Duration) *Memory[K, V] {
	return &Memory[K, V]{
		useCase: useCase,
		cache:   gocache.New(defaultExpiration, cleanupInterval),
	}
}

// Memory is the concrete implementation of the Manager interface backed by
// go-cache.
type Memory[K ~string, V any] struct {
	useCase string
	cache   *gocache.Cache
}

var _ Manager[string, any] = (*Memory[string, any])(nil)

// Get retrieves an item from the cache by its key.
func (c *Memory[K, V]) Get(ctx context.Context, key K) (V, bool) {
	var zero V

	value, found := c.cache.Get(string(key))
	if !found {
		return zero, false
	}

	v, ok := value.(V)
	if !ok {
		log.Error(log.CatCache, "wrong type assertion when getting value", "use_case", c.useCase, "key", key)
		return zero, false
	}

	log.Debug(log.CatCache, "cache hit", "use_case", c.useCase, "key", key)
	return v, true
}

// GetWithRefresh retrieves an item from the cache; if one is found the TTL
// is extended by putting the item back in the cache.
func (c *Memory[K, V]) GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool) {
	value, found := c.Get(ctx, key)
	if !found {
		return value, found
	}

	c.Set(ctx, key, value, ttl)
	return value, found
}

// Set stores a value in the cache with a key and TTL.
func (c *Memory[K, V]) Set(ctx context.Context, key K, value V, ttl time.Duration) {
	c.cache.Set(string(key), value, ttl)
}

// Delete removes values from the cache by key.
func (c *Memory[K, V]) Delete(ctx context.Context, keys ...K) error {
	for _, key := range keys {
		c.cache.Delete(string(key))
	}
	return nil
}

// Flush drops every cached value.
func (c *Memory[K, V]) Flush(ctx context.Context) error {
	c.cache.Flush()
	return nil
}
