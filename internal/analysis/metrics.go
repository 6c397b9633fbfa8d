package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	PairsFound = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skinarb_analysis_pairs_found",
		Help: "Number of pairs in the most recent analysis",
	})

	MatchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "skinarb_analysis_duration_seconds",
		Help:    "Duration of matching and ranking runs",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})
)
