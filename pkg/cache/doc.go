// Package cache keeps short-lived copies of Discogs collection pages in Redis.
//
// Discogs allows 60 authenticated requests per minute. A gallery that loads a
// large collection page by page, and then reloads it when the browser is
// refreshed, spends that budget quickly. The proxy therefore stores every
// successful (200) releases page for a short time and relays the stored
// status, content type and body byte for byte on a hit.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient, 60*time.Second)
//
//	key := cache.CacheKey{Username: "jschow", FolderID: "0", Page: 1, PerPage: 100}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from Discogs, then
//		_ = manager.Set(ctx, key, cache.NewEntry(status, header, body, manager.TTL()))
//	}
//
// # Expiry
//
// An entry lives until the upstream Expires header when one is present and in
// the future, otherwise for the manager's fallback TTL. Redis drops the key
// at the same moment.
//
// # Metrics
//
//   - discogs_cache_hits_total - Cache hits
//   - discogs_cache_misses_total - Cache misses
//   - discogs_cache_written_bytes_total - Bytes written to the cache
//   - discogs_cache_errors_total{operation} - Cache operation errors
package cache
