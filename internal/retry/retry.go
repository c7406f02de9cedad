// Package retry wraps an operation with exponential backoff, retrying only
// errors classified as transient by internal/vcs (spec §4.5).
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Sumatoshi-tech/gitperf/internal/vcs"
)

// DefaultMaxElapsed is the retry budget used when Config.MaxElapsed is zero.
const DefaultMaxElapsed = 60 * time.Second

// Config tunes one retried operation.
type Config struct {
	// MaxElapsed bounds the total time spent retrying. Zero selects
	// DefaultMaxElapsed.
	MaxElapsed time.Duration

	// BeforeRetry, if set, runs once before each retry attempt (after the
	// first failure). Push uses this to pull before trying again (spec
	// §4.5); a BeforeRetry failure that is itself a transient ref error is
	// treated as success-for-retry, since it is evidence a concurrent peer
	// made progress.
	BeforeRetry func(ctx context.Context) error

	// OnRetry, if set, is notified once per retry attempt with the
	// transient error that triggered it, mirroring the original's
	// retry_notify callback in git_interop.rs. Callers use this to drive
	// metrics (internal/observability.Metrics.Retried) without retry
	// itself depending on the metrics package.
	OnRetry func(err error, attempt int)

	Logger *slog.Logger
}

func (c Config) maxElapsed() time.Duration {
	if c.MaxElapsed <= 0 {
		return DefaultMaxElapsed
	}

	return c.MaxElapsed
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}

	return slog.Default()
}

// Do runs op, retrying with exponential backoff+jitter on transient errors
// (spec §4.5, §7) until it succeeds, a permanent error is returned, or the
// max-elapsed budget is exhausted.
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	attempt := 0

	wrapped := func() (struct{}, error) {
		if attempt > 0 && cfg.BeforeRetry != nil {
			if err := cfg.BeforeRetry(ctx); err != nil && !vcs.IsTransient(err) {
				return struct{}{}, backoff.Permanent(fmt.Errorf("pre-retry hook: %w", err))
			}
		}

		attempt++

		err := op(ctx)
		if err == nil {
			return struct{}{}, nil
		}

		if !vcs.IsTransient(err) {
			cfg.logger().Debug("retry: permanent error, not retrying", "error", err, "attempt", attempt)
			return struct{}{}, backoff.Permanent(err)
		}

		cfg.logger().Debug("retry: transient error, will retry", "error", err, "attempt", attempt)

		if cfg.OnRetry != nil {
			cfg.OnRetry(err, attempt)
		}

		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(cfg.maxElapsed()),
	)

	return err
}
