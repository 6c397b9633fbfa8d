package fetcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	PageFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_fetcher_page_failures_total",
		Help: "Total number of catalogue pages that failed after retries",
	}, []string{"marketplace"})

	FetchDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skinarb_fetcher_duration_seconds",
		Help:    "Duration of full catalogue walks",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"marketplace"})
)
