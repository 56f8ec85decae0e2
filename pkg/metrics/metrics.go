// Package metrics exposes the Prometheus metrics of the collection proxy.
// Upstream metrics are defined in their respective packages (client, cache,
// ratelimit, collection) to keep those packages self-contained; this package
// adds the HTTP handler instrumentation and the /metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by all packages.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Proxy HTTP metrics.
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_http_requests_total",
		Help: "Requests served by the collection proxy by route and status code",
	}, []string{"route", "code"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "proxy_http_request_duration_seconds",
		Help:    "Collection proxy request duration in seconds by route",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"route"})
)

// Instrument wraps h so that its requests are counted and timed under route.
func Instrument(route string, h http.Handler) http.Handler {
	labels := prometheus.Labels{"route": route}
	return promhttp.InstrumentHandlerCounter(
		httpRequestsTotal.MustCurryWith(labels),
		promhttp.InstrumentHandlerDuration(httpRequestDuration.MustCurryWith(labels), h),
	)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - discogs_rate_limit_remaining (Gauge): Requests left in the 60s Discogs window
//   - discogs_rate_limit_blocks_total (Counter): Requests blocked because the window was spent
//   - discogs_rate_limit_throttles_total (Counter): Requests delayed in the warning band
//
// Cache Metrics (pkg/cache):
//   - discogs_cache_hits_total (Counter): Release pages served from Redis
//   - discogs_cache_misses_total (Counter): Cache misses
//   - discogs_cache_written_bytes_total (Counter): Bytes written to the cache
//   - discogs_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - discogs_requests_total{status} (Counter): Upstream outcomes by HTTP status, cache_hit, rate_limited or network_error
//   - discogs_request_duration_seconds (Histogram): Page request duration, retries included
//   - discogs_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - discogs_retries_total{error_class} (Counter): Retry attempts by error class
//   - discogs_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - discogs_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Aggregator Metrics (pkg/collection):
//   - collection_pages_fetched_total{outcome} (Counter): Pages by outcome (ok, not_found, error, stale)
//   - collection_page_fetch_duration_seconds (Histogram): Single page fetch duration
//   - collection_items_merged_total (Counter): Items added after deduplication
//   - collection_bulk_loads_total{result} (Counter): Bulk loads by result (complete, partial)
//
// Proxy Metrics (this package):
//   - proxy_http_requests_total{route, code} (Counter): Requests served by route and status
//   - proxy_http_request_duration_seconds{route} (Histogram): Request duration by route
//
// Example Prometheus Queries:
//
//	# Cache Hit Rate
//	sum(rate(discogs_cache_hits_total[5m])) /
//	(sum(rate(discogs_cache_hits_total[5m])) + sum(rate(discogs_cache_misses_total[5m])))
//
//	# Rate Limit Headroom
//	discogs_rate_limit_remaining < 5
//
//	# Proxy Error Rate
//	sum(rate(proxy_http_requests_total{code=~"5.."}[5m])) / sum(rate(proxy_http_requests_total[5m]))
//
//	# P95 Upstream Latency
//	histogram_quantile(0.95, rate(discogs_request_duration_seconds_bucket[5m]))
