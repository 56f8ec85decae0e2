package cache

import (
	"time"
)

// CacheEntry is a stored upstream releases page.
type CacheEntry struct {
	// Data is the response body exactly as Discogs sent it.
	Data []byte `json:"data"`

	// StatusCode is the upstream HTTP status code.
	StatusCode int `json:"status_code"`

	// ContentType is the upstream Content-Type header.
	ContentType string `json:"content_type"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when we cached this response.
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Age returns how long ago the entry was stored.
func (e *CacheEntry) Age() time.Duration {
	return time.Since(e.CachedAt)
}
