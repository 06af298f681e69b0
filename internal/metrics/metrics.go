package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookkeeper_http_requests_total",
			Help: "Total HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookkeeper_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookkeeper_transactions_total",
			Help: "Business transactions recorded by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

// RecordTransaction counts one business transaction outcome.
func RecordTransaction(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	TransactionsTotal.WithLabelValues(kind, outcome).Inc()
}
