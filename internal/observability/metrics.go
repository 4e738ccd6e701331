package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StockBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "restaurant",
		Subsystem: "stock",
		Name:      "batches_total",
		Help:      "Stock batches by operation and terminal state.",
	}, []string{"operation", "state"})

	StockCompensations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "restaurant",
		Subsystem: "stock",
		Name:      "compensations_total",
		Help:      "Compensating increments applied after a failed commit.",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "restaurant",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
