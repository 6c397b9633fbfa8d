package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BreakerHealthy indicates whether the breaker allows incremental refreshes.
	BreakerHealthy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skinarb_breaker_healthy",
		Help: "Whether the upstream breaker is closed (1=healthy, 0=open)",
	})

	// BreakerWorstFailureRatio tracks the worst per-marketplace failure ratio.
	BreakerWorstFailureRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skinarb_breaker_worst_failure_ratio",
		Help: "Highest page failure ratio over the rolling windows",
	})

	// BreakerStateChanges tracks the number of open/close transitions.
	BreakerStateChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_breaker_state_changes_total",
		Help: "Total number of breaker state transitions",
	})
)
