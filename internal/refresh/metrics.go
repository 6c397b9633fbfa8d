package refresh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	RefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_refreshes_total",
		Help: "Total number of refreshes by mode and result",
	}, []string{"mode", "result"})

	RefreshDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skinarb_refresh_duration_seconds",
		Help:    "Duration of refreshes",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"mode"})

	LastFullTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skinarb_last_full_refresh_timestamp_seconds",
		Help: "Unix time of the last successful full refresh",
	})

	TicksSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_scheduler_ticks_skipped_total",
		Help: "Total number of scheduler ticks skipped by reason",
	}, []string{"reason"})
)
