// Package client is the Discogs API client used by the collection proxy.
// It injects credentials, respects the Discogs rate limit, retries
// transient failures and optionally caches release pages in Redis.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/vinyl-library/pkg/cache"
	"github.com/Sternrassler/vinyl-library/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public Discogs API.
const DefaultBaseURL = "https://api.discogs.com"

// acceptHeader selects the v2 Discogs media type.
const acceptHeader = "application/vnd.discogs.v2.discogs+json"

// Prometheus metrics for upstream requests.
var (
	discogsRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discogs_requests_total",
		Help: "Total Discogs requests by outcome status",
	}, []string{"status"})

	discogsRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "discogs_request_duration_seconds",
		Help:    "Discogs collection page request duration in seconds, retries included",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	discogsErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discogs_errors_total",
		Help: "Total Discogs errors by class",
	}, []string{"class"})
)

// Client talks to the Discogs API on behalf of the proxy.
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the Discogs API. Tests point this at a fake server.
	BaseURL string

	// Token is the Discogs personal access token. It is sent as
	// "Authorization: Discogs token=<Token>" and never leaves the server.
	Token string

	// UserAgent identifies the application (REQUIRED by Discogs).
	// Format: "AppName/Version (+contact)"
	UserAgent string

	// Redis enables the page cache and shares rate limit state. Optional.
	Redis *redis.Client

	// CacheTTL is the fallback lifetime of cached pages.
	CacheTTL time.Duration

	// Timeout bounds a single upstream attempt.
	Timeout time.Duration

	// Retry controls retries of network, 429 and 5xx failures.
	Retry RetryConfig

	// ThrottleDelay is the pause applied when the rate limit runs low.
	ThrottleDelay time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(token, userAgent string) Config {
	return Config{
		BaseURL:       DefaultBaseURL,
		Token:         token,
		UserAgent:     userAgent,
		CacheTTL:      cache.DefaultTTL,
		Timeout:       30 * time.Second,
		Retry:         DefaultRetryConfig(),
		ThrottleDelay: ratelimit.DefaultThrottleDelay,
	}
}

// New creates a new Discogs client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	logger := log.With().Str("component", "discogs-client").Logger()

	rateLimiter := ratelimit.NewTracker(cfg.Redis, logger)
	if cfg.ThrottleDelay > 0 {
		rateLimiter.SetThrottleDelay(cfg.ThrottleDelay)
	}

	var cacheManager *cache.Manager
	if cfg.Redis != nil {
		cacheManager = cache.NewManager(cfg.Redis, cfg.CacheTTL)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: rateLimiter,
		cache:       cacheManager,
		config:      cfg,
		logger:      logger,
	}, nil
}

// ReleasesRequest addresses one page of a user's collection folder.
type ReleasesRequest struct {
	Username string
	FolderID string
	Page     int
	PerPage  int
}

// Path returns the Discogs path of the folder's releases listing.
func (r ReleasesRequest) Path() string {
	return "/users/" + url.PathEscape(r.Username) +
		"/collection/folders/" + url.PathEscape(r.FolderID) + "/releases"
}

func (r ReleasesRequest) cacheKey() cache.CacheKey {
	return cache.CacheKey{
		Username: r.Username,
		FolderID: r.FolderID,
		Page:     r.Page,
		PerPage:  r.PerPage,
	}
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte

	// Cached is true when the response was served from the page cache.
	Cached bool
}

// FetchReleases fetches one page of a collection folder. Any upstream HTTP
// status, error statuses included, is returned as a Response so the caller
// can relay it. An error is returned only when no upstream response exists:
// network failure after retries, a spent rate limit, or cancellation.
func (c *Client) FetchReleases(ctx context.Context, req ReleasesRequest) (*Response, error) {
	start := time.Now()
	defer func() {
		discogsRequestDuration.Observe(time.Since(start).Seconds())
	}()

	logger := c.logger.With().
		Str("username", req.Username).
		Str("folder_id", req.FolderID).
		Int("page", req.Page).
		Int("per_page", req.PerPage).
		Logger()

	if c.cache != nil {
		entry, err := c.cache.Get(ctx, req.cacheKey())
		switch {
		case err == nil:
			logger.Debug().Dur("age", entry.Age()).Msg("Serving releases page from cache")
			discogsRequestsTotal.WithLabelValues("cache_hit").Inc()
			return &Response{
				StatusCode:  entry.StatusCode,
				ContentType: entry.ContentType,
				Body:        entry.Data,
				Cached:      true,
			}, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			logger.Warn().Err(err).Msg("Cache get error")
		}
	}

	allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		discogsRequestsTotal.WithLabelValues("rate_limited").Inc()
		return nil, ErrRateLimited
	}

	var resp *Response
	retryErr := retryWithBackoff(ctx, c.config.Retry, func() (ErrorClass, error) {
		resp = nil
		r, err := c.do(ctx, req)
		if err != nil {
			logger.Error().Err(err).Msg("Discogs request failed")
			discogsErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			discogsRequestsTotal.WithLabelValues("network_error").Inc()
			return ErrorClassNetwork, &UpstreamError{
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				Err:        err,
			}
		}
		resp = r
		discogsRequestsTotal.WithLabelValues(strconv.Itoa(r.StatusCode)).Inc()

		errClass := classifyStatus(r.StatusCode)
		if errClass == "" {
			return "", nil
		}

		discogsErrorsTotal.WithLabelValues(string(errClass)).Inc()
		logger.Debug().
			Int("status", r.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Discogs returned an error status")

		return errClass, &UpstreamError{
			StatusCode: r.StatusCode,
			ErrorClass: errClass,
			Message:    http.StatusText(r.StatusCode),
		}
	})

	if retryErr != nil {
		// A status response, even an exhausted 5xx, is relayed as is.
		if resp != nil && !errors.Is(retryErr, ErrContextCancelled) {
			return resp, nil
		}
		return nil, retryErr
	}

	if c.cache != nil && resp.StatusCode == http.StatusOK {
		entry := cache.NewEntry(resp.StatusCode, http.Header{"Content-Type": []string{resp.ContentType}}, resp.Body, c.cache.TTL())
		if err := c.cache.Set(ctx, req.cacheKey(), entry); err != nil {
			logger.Warn().Err(err).Msg("Failed to cache releases page")
		}
	}

	return resp, nil
}

// do performs a single upstream attempt and reads the whole body.
func (c *Client) do(ctx context.Context, req ReleasesRequest) (*Response, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(req.Page))
	query.Set("per_page", strconv.Itoa(req.PerPage))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+req.Path()+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	httpReq.Header.Set("Accept", acceptHeader)
	if c.config.Token != "" {
		httpReq.Header.Set("Authorization", "Discogs token="+c.config.Token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if err := c.rateLimiter.UpdateFromHeaders(ctx, httpResp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	contentType := httpResp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}

	return &Response{
		StatusCode:  httpResp.StatusCode,
		ContentType: contentType,
		Body:        body,
	}, nil
}

// RateLimitState exposes the tracked Discogs budget (for readiness checks).
func (c *Client) RateLimitState(ctx context.Context) (*ratelimit.RateLimitState, error) {
	return c.rateLimiter.GetState(ctx)
}

// Close releases idle upstream connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
