package keycache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var KeysCached = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "skinarb_keycache_keys",
	Help: "Number of interesting keys currently cached",
})
