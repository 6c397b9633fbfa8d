package buff

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_buff_requests_total",
		Help: "Total number of Buff API requests by result",
	}, []string{"result"})

	PagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_buff_pages_fetched_total",
		Help: "Total number of Buff pages fetched successfully",
	})

	ItemsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_buff_items_fetched_total",
		Help: "Total number of Buff listings fetched",
	})
)
