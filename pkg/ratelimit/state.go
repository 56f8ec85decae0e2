// Package ratelimit tracks the Discogs request budget and gates upstream
// requests. Discogs reports a moving 60 second window through the
// X-Discogs-Ratelimit, X-Discogs-Ratelimit-Used and
// X-Discogs-Ratelimit-Remaining response headers.
package ratelimit

import (
	"time"
)

// Discogs rate limit response headers.
const (
	HeaderLimit     = "X-Discogs-Ratelimit"
	HeaderUsed      = "X-Discogs-Ratelimit-Used"
	HeaderRemaining = "X-Discogs-Ratelimit-Remaining"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyLimit      = "discogs:rate_limit:limit"
	RedisKeyUsed       = "discogs:rate_limit:used"
	RedisKeyRemaining  = "discogs:rate_limit:remaining"
	RedisKeyLastUpdate = "discogs:rate_limit:last_update"
)

// Window is the length of the Discogs moving rate limit window.
const Window = 60 * time.Second

// Thresholds for rate limit decisions.
const (
	// ThresholdCritical blocks requests while fewer than this many requests remain.
	ThresholdCritical = 1

	// ThresholdWarning throttles requests while fewer than this many requests remain.
	ThresholdWarning = 5

	// ThresholdHealthy marks the state healthy at or above this many remaining requests.
	ThresholdHealthy = 15
)

// RateLimitState is the last observed Discogs rate limit budget.
type RateLimitState struct {
	// Limit is the total number of requests allowed per window.
	Limit int `json:"limit"`

	// Used is the number of requests made in the current window.
	Used int `json:"used"`

	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// LastUpdate is when the headers were last observed.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= ThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked. State older
// than one window no longer describes the budget and never blocks.
func (s *RateLimitState) NeedsCriticalBlock() bool {
	return s.Remaining < ThresholdCritical && !s.IsStale(Window)
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *RateLimitState) NeedsThrottling() bool {
	return s.Remaining < ThresholdWarning && !s.IsStale(Window) && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns how long until the window that produced this state
// has fully rolled over. Returns 0 if it already has.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	d := Window - time.Since(s.LastUpdate)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth updates the IsHealthy field based on current Remaining.
func (s *RateLimitState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= ThresholdHealthy
}

// defaultState is assumed until Discogs has reported real numbers.
func defaultState() *RateLimitState {
	return &RateLimitState{
		Limit:      60,
		Remaining:  60,
		LastUpdate: time.Now(),
		IsHealthy:  true,
	}
}
