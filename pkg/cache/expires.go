package cache

import (
	"net/http"
	"time"
)

// NewEntry builds a cache entry from an upstream response. The entry expires
// at the response's Expires header when it lies in the future, otherwise
// after fallbackTTL.
func NewEntry(statusCode int, header http.Header, body []byte, fallbackTTL time.Duration) *CacheEntry {
	now := time.Now()
	return &CacheEntry{
		Data:        body,
		StatusCode:  statusCode,
		ContentType: header.Get("Content-Type"),
		Expires:     parseExpires(header, now, fallbackTTL),
		CachedAt:    now,
	}
}

func parseExpires(header http.Header, now time.Time, fallbackTTL time.Duration) time.Time {
	expiresStr := header.Get("Expires")
	if expiresStr == "" {
		return now.Add(fallbackTTL)
	}

	expires, err := http.ParseTime(expiresStr)
	if err != nil || !expires.After(now) {
		return now.Add(fallbackTTL)
	}
	return expires
}
