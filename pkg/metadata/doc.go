// Package metadata defines the release data fetched from a package index and
// the two-tier cache that holds it.
//
// # Keys
//
// Each cache entry answers one index question. The key "requests" holds the
// release listing for a project, and "requests==2.31.0" holds the full
// metadata of one release (see [Key]).
//
// # Tiers
//
// [Cache] keeps entries in memory and writes through to a persisted
// [github.com/matzehuels/wheelwright/pkg/cache.Cache]. On a memory miss the
// persisted tier is consulted and a valid entry is promoted. Entries expire
// after [DefaultTTL]; not-found markers after [DefaultNegativeTTL].
//
//	store, _ := cache.NewFileCache(filepath.Join(dir, metadata.CacheVersion))
//	mc := metadata.NewCache(metadata.Options{Store: store})
//	if releases, ok := mc.Get(ctx, "requests"); ok {
//	    // serve from cache
//	}
package metadata
