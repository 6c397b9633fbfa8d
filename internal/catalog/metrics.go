package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	SnapshotStoresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_catalog_snapshot_stores_total",
		Help: "Total number of catalogue snapshots stored",
	}, []string{"marketplace"})

	SnapshotHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_catalog_snapshot_hits_total",
		Help: "Total number of snapshot reads that found a live entry",
	}, []string{"marketplace"})

	SnapshotMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_catalog_snapshot_misses_total",
		Help: "Total number of snapshot reads with no live entry",
	}, []string{"marketplace"})
)
