package pacing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_pacing_requests_total",
		Help: "Total number of requests released by the pacer",
	}, []string{"marketplace"})

	LongPausesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_pacing_long_pauses_total",
		Help: "Total number of extra long pauses taken",
	}, []string{"marketplace"})

	WaitSecondsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_pacing_wait_seconds_total",
		Help: "Cumulative seconds spent waiting for pacing",
	}, []string{"marketplace"})
)
