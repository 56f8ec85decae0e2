package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	discogsRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discogs_retries_total",
		Help: "Total number of upstream retry attempts by error class",
	}, []string{"error_class"})

	discogsRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "discogs_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"error_class"})

	discogsRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discogs_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// forClass adapts the configuration to an error class. A 429 means the
// moving window is spent, so waiting less than a few seconds is pointless.
func (c RetryConfig) forClass(errorClass ErrorClass) RetryConfig {
	if errorClass == ErrorClassRateLimit {
		c.InitialBackoff *= 4
		if c.InitialBackoff > c.MaxBackoff {
			c.InitialBackoff = c.MaxBackoff
		}
	}
	return c
}

// attemptFunc performs one attempt and classifies its failure. A nil error
// ends the retry loop.
type attemptFunc func() (ErrorClass, error)

// retryWithBackoff runs fn until it succeeds, fails with a class that must
// not be retried, or the attempts are exhausted. Waits use exponential
// backoff with ±20% jitter and honour context cancellation.
func retryWithBackoff(ctx context.Context, config RetryConfig, fn attemptFunc) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var lastErr error
	var lastClass ErrorClass
	var backoff time.Duration

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		errorClass, err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("error_class", string(lastClass)).
					Int("attempt", attempt).
					Msg("Upstream request succeeded after retry")
			}
			return nil
		}

		if !shouldRetry(errorClass) {
			return err
		}

		classConfig := config.forClass(errorClass)
		if attempt == 1 || errorClass != lastClass {
			backoff = classConfig.InitialBackoff
		}
		lastErr, lastClass = err, errorClass

		if attempt >= config.MaxAttempts {
			break
		}

		discogsRetriesTotal.WithLabelValues(string(errorClass)).Inc()

		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		discogsRetryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(jitter.Seconds())

		log.Debug().
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying upstream request after backoff")

		select {
		case <-ctx.Done():
			log.Warn().
				Str("error_class", string(errorClass)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * classConfig.BackoffMultiplier)
		if backoff > classConfig.MaxBackoff {
			backoff = classConfig.MaxBackoff
		}
	}

	discogsRetryExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	log.Warn().
		Str("error_class", string(lastClass)).
		Int("max_attempts", config.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, config.MaxAttempts, lastErr)
}
