package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/wheelwright/pkg/cache"
	"github.com/matzehuels/wheelwright/pkg/observability"
)

const (
	DefaultTTL         = 24 * time.Hour // Default lifetime of release listings
	DefaultNegativeTTL = time.Hour      // Default lifetime of not-found markers

	// CacheVersion names the on-disk layout. Bump it when Entry changes
	// incompatibly so stale files are ignored rather than misread.
	CacheVersion = "metadata-v1"

	lockStripes = 64
)

// Options configures a metadata [Cache].
type Options struct {
	TTL         time.Duration    // Lifetime of positive entries (default: 24h)
	NegativeTTL time.Duration    // Lifetime of not-found entries (default: 1h)
	Store       cache.Cache      // Persisted tier (default: NullCache)
	Logger      *log.Logger      // Debug logging of degraded disk reads (optional)
	Now         func() time.Time // Clock, overridable in tests
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.NegativeTTL <= 0 {
		opts.NegativeTTL = DefaultNegativeTTL
	}
	if opts.Store == nil {
		opts.Store = cache.NewNullCache()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

// Stats reports cache effectiveness since creation.
type Stats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	DiskHits int64 `json:"disk_hits"`
	Entries  int   `json:"entries"`
}

// Cache is the two-tier metadata cache: an in-memory map in front of a
// persisted [cache.Cache].
//
// Reads of the memory tier proceed concurrently. Loads from the persisted
// tier and all writes for a given key are serialized by a striped key lock,
// so concurrent misses on one key read the disk once. Failures of the
// persisted tier are logged at debug level and degrade to misses; they
// never surface to callers.
type Cache struct {
	opts Options

	mu      sync.RWMutex
	entries map[string]Entry
	stripes [lockStripes]sync.Mutex

	hits, misses, diskHits atomic.Int64
}

// NewCache creates a metadata cache.
func NewCache(opts Options) *Cache {
	return &Cache{
		opts:    opts.WithDefaults(),
		entries: make(map[string]Entry),
	}
}

// Get returns the cached releases for key. Negative entries and expired
// entries report found=false.
func (c *Cache) Get(ctx context.Context, key string) ([]Release, bool) {
	e, ok := c.Lookup(ctx, key)
	if !ok || e.Missing {
		return nil, false
	}
	return e.Releases, true
}

// Lookup returns the unexpired entry for key, including negative entries.
// A valid persisted entry is promoted into memory.
func (c *Cache) Lookup(ctx context.Context, key string) (Entry, bool) {
	if e, ok := c.memory(key); ok {
		c.hits.Add(1)
		observability.Cache().OnCacheHit(ctx, "memory")
		return e, true
	}

	lock := c.stripe(key)
	lock.Lock()
	defer lock.Unlock()

	// Another goroutine may have promoted the entry while we waited.
	if e, ok := c.memory(key); ok {
		c.hits.Add(1)
		observability.Cache().OnCacheHit(ctx, "memory")
		return e, true
	}
	observability.Cache().OnCacheMiss(ctx, "memory")

	e, ok := c.load(ctx, key)
	if !ok {
		c.misses.Add(1)
		observability.Cache().OnCacheMiss(ctx, "disk")
		return Entry{}, false
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()

	c.hits.Add(1)
	c.diskHits.Add(1)
	observability.Cache().OnCacheHit(ctx, "disk")
	return e, true
}

// Put stores releases for key in both tiers, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, key string, releases []Release) {
	c.store(ctx, key, Entry{
		Releases:  slices.Clone(releases),
		FetchedAt: c.opts.Now(),
		TTL:       c.opts.TTL,
	})
}

// PutMissing records that key does not exist on the index.
func (c *Cache) PutMissing(ctx context.Context, key string) {
	c.store(ctx, key, Entry{
		Missing:   true,
		FetchedAt: c.opts.Now(),
		TTL:       c.opts.NegativeTTL,
	})
}

// Invalidate removes key from both tiers.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	lock := c.stripe(key)
	lock.Lock()
	defer lock.Unlock()

	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	if err := c.opts.Store.Delete(ctx, key); err != nil {
		c.opts.Logger.Debug("cache delete failed", "key", key, "err", err)
	}
}

// Clear drops every entry from memory and, when the persisted tier supports
// it, from disk.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mu.Unlock()

	if cl, ok := c.opts.Store.(cache.Clearer); ok {
		return cl.Clear(ctx)
	}
	return nil
}

// Stats returns hit and miss counters and the number of in-memory entries.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		DiskHits: c.diskHits.Load(),
		Entries:  n,
	}
}

// Usage reports the persisted tier's size, if it can tell.
func (c *Cache) Usage(ctx context.Context) (cache.Usage, error) {
	if s, ok := c.opts.Store.(cache.Sizer); ok {
		return s.Usage(ctx)
	}
	return cache.Usage{}, nil
}

// memory returns the unexpired in-memory entry for key. An expired entry is
// dropped so long-running processes do not accumulate stale listings.
func (c *Cache) memory(key string) (Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	now := c.opts.Now()
	if !e.Expired(now) {
		return e, true
	}

	c.mu.Lock()
	if cur, ok := c.entries[key]; ok && cur.Expired(now) {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return Entry{}, false
}

func (c *Cache) load(ctx context.Context, key string) (Entry, bool) {
	data, found, err := c.opts.Store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrCorrupt) {
			c.opts.Logger.Debug("removed corrupt cache entry", "key", key)
		} else {
			c.opts.Logger.Debug("cache read failed", "key", key, "err", err)
		}
		return Entry{}, false
	}
	if !found {
		return Entry{}, false
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.opts.Logger.Debug("removed undecodable cache entry", "key", key, "err", err)
		_ = c.opts.Store.Delete(ctx, key)
		return Entry{}, false
	}
	if e.Expired(c.opts.Now()) {
		return Entry{}, false
	}
	return e, true
}

func (c *Cache) store(ctx context.Context, key string, e Entry) {
	lock := c.stripe(key)
	lock.Lock()
	defer lock.Unlock()

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()

	data, err := json.Marshal(e)
	if err != nil {
		c.opts.Logger.Debug("cache encode failed", "key", key, "err", err)
		return
	}
	if err := c.opts.Store.Set(ctx, key, data, e.TTL); err != nil {
		c.opts.Logger.Debug("cache write failed", "key", key, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "disk", len(data))
}

func (c *Cache) stripe(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &c.stripes[h.Sum32()%lockStripes]
}
