package settings

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var ChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "skinarb_settings_changes_total",
	Help: "Total number of runtime settings mutations applied",
})
