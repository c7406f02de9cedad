// Package measurement is the public surface used by the CLI and by
// importers: recording samples, synchronizing with a remote, pruning old
// history, and walking commit history for reporting (spec, outer surface).
//
// It is thin orchestration over internal/consolidate, internal/retry, and
// internal/codec, matching the split between measurement_storage.rs and
// measurement_retrieval.rs in the original.
package measurement

import (
	"context"
	"fmt"
	"time"

	"github.com/Sumatoshi-tech/gitperf/internal/codec"
	"github.com/Sumatoshi-tech/gitperf/internal/config"
	"github.com/Sumatoshi-tech/gitperf/internal/consolidate"
	"github.com/Sumatoshi-tech/gitperf/internal/observability"
	"github.com/Sumatoshi-tech/gitperf/internal/retry"
	"github.com/Sumatoshi-tech/gitperf/internal/vcs"
)

// Commit is one walked commit together with its decoded measurements.
type Commit struct {
	Hash         string
	Measurements []codec.Record
}

// Engine is the entry point for one repository working directory.
type Engine struct {
	consolidate *consolidate.Engine
	config      *config.Document
	now         func() time.Time
	metrics     *observability.Metrics
}

// Option customizes a new Engine.
type Option func(*Engine)

// WithClock overrides the time source used to stamp new measurements
// (tests only; production always uses time.Now).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics wires m's counters into every retried and long-lived
// operation the Engine performs. m may be nil, in which case Observe and
// Retried are no-ops (observability.Metrics is nil-receiver-safe).
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New returns an Engine operating on runner's repository, consulting cfg
// for epochs and retry tuning.
func New(runner *vcs.Runner, cfg *config.Document, opts ...Option) *Engine {
	e := &Engine{
		consolidate: consolidate.New(runner),
		config:      cfg,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// retryConfig builds a retry.Config for operation, wiring its OnRetry hook
// to record a retry count against operation (spec's "/metrics counters for
// the long-lived commands (push/pull attempt and retry counts)").
func (e *Engine) retryConfig(operation string, beforeRetry func(ctx context.Context) error) retry.Config {
	return retry.Config{
		MaxElapsed:  e.config.BackoffMaxElapsed(),
		BeforeRetry: beforeRetry,
		OnRetry: func(err error, attempt int) {
			e.metrics.Retried(operation)
		},
	}
}

func (e *Engine) epoch(name string) uint32 {
	epoch, ok := e.config.DetermineEpoch(name)
	if !ok {
		return 0
	}

	return epoch
}

func (e *Engine) requireHead(ctx context.Context) (string, error) {
	head, err := e.consolidate.Refs.Resolve(ctx, "HEAD")
	if err != nil {
		return "", &vcs.MissingHeadError{Reference: "HEAD"}
	}

	return head, nil
}

// Add records one measurement sample against HEAD (spec's `add` verb,
// grounded on measurement_storage.rs's add).
func (e *Engine) Add(ctx context.Context, name string, value float64, keyValues map[string]string) error {
	head, err := e.requireHead(ctx)
	if err != nil {
		return err
	}

	rec := codec.Record{
		Epoch:     e.epoch(name),
		Name:      name,
		Timestamp: e.timestamp(),
		Value:     value,
		KeyValues: keyValues,
	}

	line := codec.Encode([]codec.Record{rec})

	return retry.Do(ctx, e.retryConfig("add", nil), func(ctx context.Context) error {
		return e.consolidate.Append(ctx, head, line)
	})
}

// AddMultiple records several values for the same measurement name sharing
// one timestamp and key-value set (spec's `add_multiple` verb, grounded on
// measurement_storage.rs's add_multiple).
func (e *Engine) AddMultiple(ctx context.Context, name string, values []float64, keyValues map[string]string) error {
	head, err := e.requireHead(ctx)
	if err != nil {
		return err
	}

	epoch := e.epoch(name)
	timestamp := e.timestamp()

	records := make([]codec.Record, 0, len(values))
	for _, v := range values {
		records = append(records, codec.Record{
			Epoch:     epoch,
			Name:      name,
			Timestamp: timestamp,
			Value:     v,
			KeyValues: keyValues,
		})
	}

	line := codec.Encode(records)

	return retry.Do(ctx, e.retryConfig("add_multiple", nil), func(ctx context.Context) error {
		return e.consolidate.Append(ctx, head, line)
	})
}

func (e *Engine) timestamp() float64 {
	return float64(e.now().UnixNano()) / 1e9
}

// Push consolidates local writes into the remote canonical ref, pulling
// between retries on a transient failure (spec §4.4.3, §4.5).
func (e *Engine) Push(ctx context.Context, remote string) error {
	cfg := e.retryConfig("push", func(ctx context.Context) error {
		return e.consolidate.Pull(ctx, remote)
	})

	return e.metrics.Observe("push", func() error {
		return retry.Do(ctx, cfg, func(ctx context.Context) error {
			return e.consolidate.Push(ctx, remote)
		})
	})
}

// Pull fetches the canonical ref from remote.
func (e *Engine) Pull(ctx context.Context, remote string) error {
	return e.metrics.Observe("pull", func() error {
		return retry.Do(ctx, e.retryConfig("pull", nil), func(ctx context.Context) error {
			return e.consolidate.Pull(ctx, remote)
		})
	})
}

// Prune drops measurements on commits no longer reachable, then pushes the
// rewritten history.
func (e *Engine) Prune(ctx context.Context, remote string) error {
	return e.metrics.Observe("prune", func() error {
		return retry.Do(ctx, e.retryConfig("prune", nil), func(ctx context.Context) error {
			return e.consolidate.Prune(ctx, remote)
		})
	})
}

// RemoveOlderThan drops measurements on commits at or before threshold,
// then pushes the rewritten history.
func (e *Engine) RemoveOlderThan(ctx context.Context, remote string, threshold time.Time) error {
	return e.metrics.Observe("remove_older_than", func() error {
		return retry.Do(ctx, e.retryConfig("remove_older_than", nil), func(ctx context.Context) error {
			return e.consolidate.RemoveOlderThan(ctx, remote, threshold)
		})
	})
}

// BumpEpoch advances measurement's epoch to HEAD's short hash and persists
// it to path (spec's supplemented "bump-epoch" verb).
func (e *Engine) BumpEpoch(ctx context.Context, path, measurement string) error {
	head, err := e.requireHead(ctx)
	if err != nil {
		return err
	}

	if err := e.config.BumpEpoch(measurement, head); err != nil {
		return fmt.Errorf("bump epoch for %s: %w", measurement, err)
	}

	return e.config.Write(path)
}
