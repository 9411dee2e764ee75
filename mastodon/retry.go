// ABOUTME: Retry logic with exponential backoff and jitter for Mastodon API calls.
// ABOUTME: Retries only errors that report themselves retryable and honors Retry-After hints.
package mastodon

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy configures how failed API calls are retried.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool

	// OnRetry is called before each retry with the triggering error.
	OnRetry func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy returns 3 retries, 1s base delay, 30s cap, 2x backoff, jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        3,
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// NoRetry disables retries.
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// CalculateDelay computes the backoff for an attempt, capped at MaxDelay.
// With Jitter the delay is drawn uniformly from [0, backoff].
func (p RetryPolicy) CalculateDelay(attempt int) time.Duration {
	delayFloat := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if delayFloat > float64(p.MaxDelay) {
		delayFloat = float64(p.MaxDelay)
	}

	delay := time.Duration(delayFloat)
	if p.Jitter && delay > 0 {
		delay = time.Duration(rand.Int64N(int64(delay) + 1))
	}
	return delay
}

// ShouldRetry reports whether err is retryable and attempts remain.
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.MaxRetries {
		return false
	}
	var r interface{ IsRetryable() bool }
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return false
}

// Retry runs fn until it succeeds, returns a non-retryable error, runs out of
// attempts, or ctx is cancelled. The last error is returned.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !policy.ShouldRetry(err, attempt) {
			return err
		}

		delay := policy.CalculateDelay(attempt)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > delay {
			delay = apiErr.RetryAfter
		}

		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt, delay)
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
	}
}
