// Package cache provides the persisted byte-level cache tier used beneath
// the in-memory metadata cache.
//
// Three backends implement [Cache]:
//   - [FileCache]: one file per key under a directory, for the CLI
//   - [RedisCache]: a shared Redis instance, for the API server
//   - [NullCache]: stores nothing, used when caching is disabled
//
// Keys are opaque strings. Backends that support bulk maintenance also
// implement [Clearer] and [Sizer].
package cache

import (
	"context"
	"time"
)

// Cache is a TTL-aware key/value store. A zero ttl means no expiry.
//
// Get reports a miss with found=false and a nil error. Implementations must
// be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, found bool, err error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Clearer is implemented by caches that can drop every entry at once.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Usage summarizes what a cache currently holds.
type Usage struct {
	Entries int
	Bytes   int64
}

// Sizer is implemented by caches that can report their usage.
type Sizer interface {
	Usage(ctx context.Context) (Usage, error)
}
