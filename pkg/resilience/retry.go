// Package resilience provides the retry, circuit-breaker and bulkhead
// primitives the dispatch pipeline composes around outbound provider calls.
package resilience

import (
	"context"
	"math"
	"time"

	"github.com/relay-io/relaycore/pkg/errors"
	"github.com/relay-io/relaycore/pkg/logger"
)

// RetryConfig defines the exponential backoff schedule for one operation.
type RetryConfig struct {
	MaxRetries   int           `json:"max_retries"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// DefaultRetryConfig mirrors the operational defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}
}

// delayForAttempt computes min(initialDelay * multiplier^attempt, maxDelay)
// for the zero-based attempt index.
func (c RetryConfig) delayForAttempt(attempt int) time.Duration {
	multiplier := c.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	delay := float64(c.InitialDelay) * math.Pow(multiplier, float64(attempt))
	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(delay)
}

// RetryExecutor runs operations under an exponential backoff schedule.
type RetryExecutor struct {
	logger logger.Logger
}

// NewRetryExecutor creates a retry executor.
func NewRetryExecutor(log logger.Logger) *RetryExecutor {
	if log == nil {
		log = logger.Discard
	}
	return &RetryExecutor{logger: log}
}

// ExecuteWithRetry runs op up to cfg.MaxRetries+1 times, sleeping the backoff
// delay between attempts. Once the budget is exhausted an ErrRetriesExhausted
// error wrapping the last failure is returned. Context cancellation aborts
// the wait and returns ctx.Err().
func (r *RetryExecutor) ExecuteWithRetry(ctx context.Context, name string, cfg RetryConfig, op func(ctx context.Context) error) error {
	return r.ExecuteWithRetryIf(ctx, name, cfg, op, errors.IsRetryable)
}

// ExecuteWithRetryIf behaves like ExecuteWithRetry but consults shouldRetry
// before spending budget: a failure the predicate rejects is returned
// immediately without further attempts.
func (r *RetryExecutor) ExecuteWithRetryIf(ctx context.Context, name string, cfg RetryConfig, op func(ctx context.Context) error, shouldRetry func(error) bool) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				r.logger.Info("Operation succeeded after retry",
					"operation", name, "attempt", attempt+1)
			}
			return nil
		}
		lastErr = err

		if shouldRetry != nil && !shouldRetry(err) {
			r.logger.Warn("Operation failed with non-retryable error",
				"operation", name, "error", err)
			return err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		delay := cfg.delayForAttempt(attempt)
		r.logger.Debug("Operation failed, retrying",
			"operation", name, "attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	r.logger.Error("Operation failed after exhausting retries",
		"operation", name, "attempts", cfg.MaxRetries+1, "error", lastErr)
	return errors.Newf(errors.ErrRetriesExhausted,
		"operation %s failed after %d attempts: %v", name, cfg.MaxRetries+1, lastErr).
		WithCause(lastErr).
		WithRetryable(errors.IsRetryable(lastErr))
}
