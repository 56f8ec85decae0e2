package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/vinyl-library/pkg/client"
	"github.com/Sternrassler/vinyl-library/pkg/logging"
)

const (
	defaultPort       = "5175"
	defaultUserAgent  = "VinylLibrary/1.0 (+http://localhost:5173)"
	defaultCORSOrigin = "http://localhost:5173"
)

// config is the proxy configuration, read from the environment.
type config struct {
	Token       string
	UserAgent   string
	Port        string
	CORSOrigins []string
	UpstreamURL string

	// RedisURL enables the page cache and shared rate limit state. Either
	// host:port or a redis:// URL.
	RedisURL string
	CacheTTL time.Duration

	MetricsEnabled bool
	Logging        logging.Config
}

func loadConfig() (config, error) {
	cfg := config{
		Token:          os.Getenv("DISCOGS_TOKEN"),
		UserAgent:      getEnv("USER_AGENT", defaultUserAgent),
		Port:           getEnv("PORT", defaultPort),
		UpstreamURL:    getEnv("UPSTREAM_URL", client.DefaultBaseURL),
		RedisURL:       os.Getenv("REDIS_URL"),
		MetricsEnabled: true,
		Logging:        logging.ConfigFromEnv(),
	}

	for _, origin := range strings.Split(getEnv("CORS_ORIGIN", defaultCORSOrigin), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return cfg, fmt.Errorf("invalid PORT %q: %w", cfg.Port, err)
	}

	ttl, err := time.ParseDuration(getEnv("CACHE_TTL", "60s"))
	if err != nil {
		return cfg, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	cfg.CacheTTL = ttl

	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid METRICS_ENABLED: %w", err)
		}
		cfg.MetricsEnabled = enabled
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
