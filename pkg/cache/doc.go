// Package cache provides the persistent feed cache and its freshness policy.
//
// The package has two halves:
//
// - Store: a durable URL -> CacheEntry mapping (SQLiteStore on disk,
//   RedisStore for a shared backend)
// - Policy: pure freshness decisions (is an entry fresh, which conditional
//   request hints to send, when does a new response expire)
//
// # Basic Usage
//
//	store, err := cache.NewSQLiteStore("/var/lib/feedcache/cache.db")
//	if err != nil {
//		return err
//	}
//
//	entry, err := store.Read(ctx, "https://example.com/feed.xml")
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Never cached - fetch from origin
//	}
//
// # Freshness
//
//	policy := cache.NewPolicy(20 * time.Minute)
//
//	if policy.IsFresh(entry, time.Now()) {
//		// Serve from cache without contacting the origin
//	}
//
//	hints := policy.ConditionalHints(entry) // ETag / Last-Modified for the origin
//
//	// After the origin answered:
//	entry.ExpireAt = policy.ComputeExpiry(time.Now(), resp.Headers)
//
// ComputeExpiry honors Cache-Control max-age but never trusts a response for
// longer than the ceiling. Without max-age the ceiling is used.
//
// # Metrics
//
//   - feedcache_store_reads_total{backend,result} - Store reads (found, miss, error)
//   - feedcache_store_writes_total{backend} - Entries written
//   - feedcache_entry_size_bytes{backend} - Encoded entry size
//   - feedcache_store_errors_total{backend,operation} - Store operation errors
//   - feedcache_entries_pruned_total{backend} - Entries removed by Prune
//
// # Limitations
//
// Stores serialize access within one process only. Pointing two processes at
// the same SQLite file or Redis keyspace is unsupported: concurrent writers
// may silently overwrite each other.
package cache
