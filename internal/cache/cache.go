// Package cache provides the in-memory caches used by the catalog for
// cross-cutting lookups (vocabulary index). Entity proxies themselves are
// never stored here; the registry owns those under its own invariant.
package cache

import (
	"context"
	"time"
)

const DefaultExpiration = 10 * time.Minute
const DefaultCleanupInterval = 30 * time.Minute

// Manager is a TTL'd key/value cache.
type Manager[K ~string, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
	Flush(ctx context.Context) error
}
