package credentials

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_credentials_updates_total",
		Help: "Total number of credential updates applied",
	}, []string{"marketplace"})

	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_credentials_probes_total",
		Help: "Total number of credential probes by result",
	}, []string{"marketplace", "result"})
)
