package main

import (
	"net/http"
	"time"

	"github.com/Sternrassler/vinyl-library/pkg/client"
	"github.com/Sternrassler/vinyl-library/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// newServer builds the proxy handler: routes, metrics, CORS and access logs.
func newServer(cfg config, c *client.Client, redisClient *redis.Client, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /health", metrics.Instrument("health", http.HandlerFunc(healthHandler)))
	mux.Handle("GET /ready", metrics.Instrument("ready", readyHandler(redisClient, c)))
	mux.Handle("GET /api/collection/{username}/{folderId}", metrics.Instrument("collection", collectionHandler(c)))
	if cfg.MetricsEnabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	var h http.Handler = cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet},
	}).Handler(mux)

	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request served")
	})(h)
	h = hlog.RemoteAddrHandler("remote_addr")(h)
	return hlog.NewHandler(logger)(h)
}
