package discovery

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsSubsystem = "sdk"

type sdkMetrics struct {
	requests *prometheus.CounterVec   // operation, path, status
	duration *prometheus.HistogramVec // operation
	results  prometheus.Histogram
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery", Subsystem: metricsSubsystem,
		Name: "requests_total",
		Help: "SDK calls by operation, resolution path and status.",
	}, []string{"operation", "path", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "discovery", Subsystem: metricsSubsystem,
		Name:    "request_duration_seconds",
		Help:    "SDK call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	results := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "discovery", Subsystem: metricsSubsystem,
		Name:    "results",
		Help:    "Items returned per successful discovery call.",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
	})

	var err error
	m := &sdkMetrics{}
	if m.requests, err = adopt(reg, requests); err != nil {
		return nil, err
	}
	if m.duration, err = adopt(reg, duration); err != nil {
		return nil, err
	}
	if m.results, err = adopt(reg, results); err != nil {
		return nil, err
	}
	return m, nil
}

// adopt registers c, or returns the collector already registered under the
// same descriptor so several clients can share one registry.
func adopt[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var dup prometheus.AlreadyRegisteredError
	if !errors.As(err, &dup) {
		return c, fmt.Errorf("discovery: register metric: %w", err)
	}
	existing, ok := dup.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("discovery: metric registered as %T", dup.ExistingCollector)
	}
	return existing, nil
}

// observer logs and counts client calls. Both halves are optional.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg == nil {
		return o, nil
	}
	m, err := newSDKMetrics(reg)
	if err != nil {
		return nil, err
	}
	o.metrics = m
	return o, nil
}

// observe records one call. path is empty for calls that classify nothing.
func (o *observer) observe(op, path string, start time.Time, items int, err error) {
	if o == nil {
		return
	}
	elapsed := time.Since(start)
	o.count(op, path, elapsed, items, err)

	if o.logger == nil {
		return
	}
	attrs := []any{"op", op, "path", path, "duration", elapsed}
	if err != nil {
		o.logger.Warn("discovery call failed", append(attrs, "error", err)...)
		return
	}
	o.logger.Debug("discovery call done", append(attrs, "items", items)...)
}

func (o *observer) count(op, path string, elapsed time.Duration, items int, err error) {
	m := o.metrics
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.requests.WithLabelValues(op, path, status).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	if err == nil && path != "" {
		m.results.Observe(float64(items))
	}
}
