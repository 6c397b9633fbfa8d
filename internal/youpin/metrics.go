package youpin

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_youpin_requests_total",
		Help: "Total number of Youpin API requests by result",
	}, []string{"result"})

	PagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_youpin_pages_fetched_total",
		Help: "Total number of Youpin pages fetched successfully",
	})

	ItemsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_youpin_items_fetched_total",
		Help: "Total number of Youpin listings fetched",
	})
)
