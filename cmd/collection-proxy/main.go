// Command collection-proxy serves a user's Discogs collection to the browser
// without exposing the Discogs token or user agent.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/vinyl-library/pkg/client"
	"github.com/Sternrassler/vinyl-library/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Proxy failed")
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.Logging).With().Str("component", "collection-proxy").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := connectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		logger.Info().Msg("Connected to Redis, page cache enabled")
	}

	if cfg.Token == "" {
		logger.Warn().Msg("DISCOGS_TOKEN is not set, requests are unauthenticated")
	}

	clientCfg := client.DefaultConfig(cfg.Token, cfg.UserAgent)
	clientCfg.BaseURL = cfg.UpstreamURL
	clientCfg.Redis = redisClient
	clientCfg.CacheTTL = cfg.CacheTTL

	discogs, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create discogs client: %w", err)
	}
	defer discogs.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newServer(cfg, discogs, redisClient, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Strs("cors_origins", cfg.CORSOrigins).
			Str("upstream", cfg.UpstreamURL).
			Msgf("Proxy running on http://localhost:%s", cfg.Port)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// connectRedis returns nil when url is empty.
func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}

	opts := &redis.Options{Addr: url}
	if strings.Contains(url, "://") {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		opts = parsed
	}

	redisClient := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return redisClient, nil
}
