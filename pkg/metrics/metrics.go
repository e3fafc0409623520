// Package metrics exposes Prometheus counters for tap runs.
//
// # Basic Usage
//
//	metrics.RecordsEmitted.WithLabelValues("campaigns").Inc()
//
//	timer := metrics.NewTimer("sync")
//	run()
//	metrics.SyncDuration.Observe(timer.Stop().Seconds())
//
// Metrics are registered with the default registry on package load and can
// be scraped through Handler or Serve.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// RecordsEmitted counts records written to the destination.
	// Labels: stream
	RecordsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tap_taboola_records_emitted_total",
			Help: "Total number of records emitted",
		},
		[]string{"stream"},
	)

	// RecordsDropped counts records rejected during post-processing.
	// Labels: stream, reason
	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tap_taboola_records_dropped_total",
			Help: "Total number of records dropped during post-processing",
		},
		[]string{"stream", "reason"},
	)

	// PagesFetched counts API pages fetched.
	// Labels: stream
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tap_taboola_pages_fetched_total",
			Help: "Total number of pages fetched",
		},
		[]string{"stream"},
	)

	// ContextsSkipped counts stream contexts skipped by a resume policy.
	// Labels: stream
	ContextsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tap_taboola_contexts_skipped_total",
			Help: "Total number of stream contexts skipped",
		},
		[]string{"stream"},
	)

	// BookmarksFinalized counts bookmark commits.
	// Labels: stream
	BookmarksFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tap_taboola_bookmarks_finalized_total",
			Help: "Total number of finalized bookmarks",
		},
		[]string{"stream"},
	)

	// HTTPRequests counts API requests by outcome.
	// Labels: code (status code or "error")
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tap_taboola_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"code"},
	)

	// HTTPRetries counts retried requests.
	HTTPRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tap_taboola_http_retries_total",
			Help: "Total number of retried HTTP requests",
		},
	)

	// HTTPLatency tracks request latency in seconds.
	HTTPLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tap_taboola_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SyncDuration tracks the duration of complete runs in seconds.
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tap_taboola_sync_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer name
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It may be called
// multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	return nil
}
