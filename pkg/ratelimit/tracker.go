package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultThrottleDelay is how long a request is held back in the warning band.
const DefaultThrottleDelay = 1 * time.Second

// Prometheus metrics for rate limit tracking.
var (
	discogsRateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "discogs_rate_limit_remaining",
		Help: "Requests remaining in the current Discogs rate limit window",
	})

	discogsRateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discogs_rate_limit_blocks_total",
		Help: "Total number of upstream requests blocked because the window was spent",
	})

	discogsRateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discogs_rate_limit_throttles_total",
		Help: "Total number of upstream requests delayed in the warning band",
	})
)

// Tracker monitors the Discogs rate limit and gates requests. State is kept
// in Redis when a client is given so that several proxy instances share one
// budget; otherwise it lives in memory.
type Tracker struct {
	redis         *redis.Client
	logger        zerolog.Logger
	throttleDelay time.Duration

	mu    sync.Mutex
	local *RateLimitState
}

// NewTracker creates a new rate limit tracker. redisClient may be nil.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:         redisClient,
		logger:        logger,
		throttleDelay: DefaultThrottleDelay,
	}
}

// SetThrottleDelay overrides DefaultThrottleDelay.
func (t *Tracker) SetThrottleDelay(d time.Duration) {
	t.throttleDelay = d
}

// GetState returns the current rate limit state. A default healthy state is
// returned when nothing has been observed within the last window.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.local == nil {
			return defaultState(), nil
		}
		s := *t.local
		return &s, nil
	}

	lastUpdate, err := t.redis.Get(ctx, RedisKeyLastUpdate).Int64()
	if errors.Is(err, redis.Nil) {
		t.logger.Debug().Msg("No rate limit state in Redis, assuming healthy")
		return defaultState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	limit, err := t.redis.Get(ctx, RedisKeyLimit).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get limit: %w", err)
	}
	used, err := t.redis.Get(ctx, RedisKeyUsed).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get used: %w", err)
	}
	remaining, err := t.redis.Get(ctx, RedisKeyRemaining).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get remaining: %w", err)
	}

	state := &RateLimitState{
		Limit:      limit,
		Used:       used,
		Remaining:  remaining,
		LastUpdate: time.Unix(0, lastUpdate),
	}
	state.UpdateHealth()

	return state, nil
}

// UpdateFromHeaders records the rate limit headers of an upstream response.
// Responses without X-Discogs-Ratelimit-Remaining are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remaining, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	limit, err := optionalInt(headers, HeaderLimit)
	if err != nil {
		return err
	}
	used, err := optionalInt(headers, HeaderUsed)
	if err != nil {
		return err
	}

	state := &RateLimitState{
		Limit:      limit,
		Used:       used,
		Remaining:  remaining,
		LastUpdate: time.Now(),
	}
	state.UpdateHealth()

	if err := t.store(ctx, state); err != nil {
		return err
	}

	discogsRateLimitRemaining.Set(float64(remaining))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("remaining", remaining).
			Int("limit", limit).
			Msg("Discogs rate limit spent - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", remaining).
			Int("limit", limit).
			Msg("Discogs rate limit low - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", remaining).
			Int("used", used).
			Bool("is_healthy", state.IsHealthy).
			Msg("Discogs rate limit state updated")
	}

	return nil
}

func (t *Tracker) store(ctx context.Context, state *RateLimitState) error {
	if t.redis == nil {
		t.mu.Lock()
		t.local = state
		t.mu.Unlock()
		return nil
	}

	// Keys expire with the window so old budgets never block.
	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyLimit, state.Limit, Window)
	pipe.Set(ctx, RedisKeyUsed, state.Used, Window)
	pipe.Set(ctx, RedisKeyRemaining, state.Remaining, Window)
	pipe.Set(ctx, RedisKeyLastUpdate, state.LastUpdate.UnixNano(), Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}

// ShouldAllowRequest reports whether an upstream request may be sent now.
// It returns false when the window is spent and sleeps for the throttle
// delay in the warning band.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Discogs rate limit spent - blocking request")

		discogsRateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("delay", t.throttleDelay).
			Msg("Discogs rate limit low - throttling request")

		discogsRateLimitThrottlesTotal.Inc()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(t.throttleDelay):
		}
	}

	return true, nil
}

func optionalInt(headers http.Header, name string) (int, error) {
	v := headers.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s header: %w", name, err)
	}
	return n, nil
}
