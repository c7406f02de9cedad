package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts and times push/pull/prune/removal attempts. Counting does
// not depend on whether /metrics is served. A nil *Metrics is a no-op, so
// core packages never need a nil check.
type Metrics struct {
	attempts *prometheus.CounterVec
	retries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers gitperf's counters/histograms against a fresh
// registry and returns both.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		attempts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "gitperf",
			Name:      "operation_attempts_total",
			Help:      "Number of attempts per git-perf operation, labeled by outcome.",
		}, []string{"operation", "outcome"}),
		retries: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "gitperf",
			Name:      "operation_retries_total",
			Help:      "Number of retry attempts per git-perf operation.",
		}, []string{"operation"}),
		duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gitperf",
			Name:      "operation_duration_seconds",
			Help:      "Duration of git-perf operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	return m, reg
}

// Observe times op, recording success/failure and duration under operation.
func (m *Metrics) Observe(operation string, op func() error) error {
	start := time.Now()
	err := op()

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}

	if m != nil {
		m.attempts.WithLabelValues(operation, outcome).Inc()
		m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}

	return err
}

// Retried records one retry attempt for operation.
func (m *Metrics) Retried(operation string) {
	if m != nil {
		m.retries.WithLabelValues(operation).Inc()
	}
}

// ServeMetrics starts a /metrics HTTP listener on addr and blocks until ctx
// is canceled, then shuts it down. Opt-in: only called when the CLI is
// given --metrics-addr.
func ServeMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shut down metrics listener: %w", err)
		}

		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serve metrics: %w", err)
	}
}
