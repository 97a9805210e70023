// Package retry runs fallible calls to external data sources with
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/goran-ethernal/IndexGraph/internal/metrics"
	"github.com/goran-ethernal/IndexGraph/pkg/config"
)

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

var retryableFragments = []string{
	// timeouts
	"timeout", "deadline exceeded",
	// rate limiting
	"429", "too many requests", "rate limit",
	// temporary upstream failures
	"500", "502", "503", "504", "bad gateway", "service unavailable", "gateway timeout",
	// exhausted connection pools
	"connection pool", "no available connection",
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range retryableFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	return false
}

// Backoff returns the wait before attempt, with 25% jitter. The first
// attempt never waits.
func Backoff(attempt int, cfg *config.RetryConfig) time.Duration {
	if attempt <= 1 {
		return 0
	}

	backoff := float64(cfg.InitialBackoff.Duration) * math.Pow(cfg.BackoffMultiplier, float64(attempt-2))
	backoff = min(backoff, float64(cfg.MaxBackoff.Duration))

	jitter := backoff * 0.25
	backoff += rand.Float64()*2*jitter - jitter

	return time.Duration(max(backoff, 0))
}

// Do calls fn until it succeeds, fails with a non-retryable error or runs out
// of attempts. A nil cfg calls fn once.
func Do(ctx context.Context, cfg *config.RetryConfig, operation string, fn func() error) error {
	if cfg == nil {
		return fn()
	}

	var lastErr error
	start := time.Now()

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if wait := Backoff(attempt, cfg); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s cancelled during backoff (attempt %d/%d): %w",
					operation, attempt, cfg.MaxAttempts, ctx.Err())
			}
			metrics.RetriesInc(operation)
		}

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s cancelled before attempt %d: %w", operation, attempt, err)
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !Retryable(err) {
			return fmt.Errorf("%s failed with non-retryable error on attempt %d/%d: %w",
				operation, attempt, cfg.MaxAttempts, err)
		}
	}

	return fmt.Errorf("%s failed after %d attempts in %v: %w",
		operation, cfg.MaxAttempts, time.Since(start), lastErr)
}
