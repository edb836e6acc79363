package orderbook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var bookOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "arbscan_orderbook_fetch_total",
	Help: "Orderbook side fetches by platform and outcome (fresh, inverted, stale, unavailable, timeout, panic)",
}, []string{"platform", "result"})
