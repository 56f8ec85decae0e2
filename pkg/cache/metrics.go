package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discogs_cache_hits_total",
			Help: "Total number of Discogs page cache hits",
		},
	)

	// CacheMisses tracks cache misses, including expired entries.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discogs_cache_misses_total",
			Help: "Total number of Discogs page cache misses",
		},
	)

	// CacheBytesWritten tracks bytes written to the cache.
	CacheBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discogs_cache_written_bytes_total",
			Help: "Total bytes written to the Discogs page cache",
		},
	)

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discogs_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
