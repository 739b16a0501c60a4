package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome label values of DiscoveryRequestsTotal.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

var (
	// DiscoveryRequestsTotal counts requests by resolution path (text, random,
	// negative_only, recommend) and outcome.
	DiscoveryRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Discovery requests by resolution path and outcome.",
	}, []string{"path", "outcome"})

	// DiscoveryResults observes how many products each request returned.
	DiscoveryResults = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "results",
		Help:      "Products returned per discovery request.",
		Buckets:   []float64{0, 1, 3, 6, 12, 24, 50, 100},
	}, []string{"path"})

	// IndexRequestDuration times similarity index calls per backend and operation.
	IndexRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "index_request_duration_seconds",
		Help:      "Similarity index call latency.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10),
	}, []string{"backend", "op", "status"})
)
