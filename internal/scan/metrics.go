package scan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_scans_total",
		Help: "Completed scans by outcome",
	}, []string{"outcome"})

	scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbscan_scan_duration_seconds",
		Help:    "Wall-clock duration of a scan",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
	})

	opportunitiesFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbscan_opportunities_found_total",
		Help: "Opportunities that cleared the minimum spread",
	})

	pairFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_pair_failures_total",
		Help: "Matched pairs skipped because pricing failed",
	}, []string{"reason"})

	sinkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_sink_failures_total",
		Help: "Failed writes to the opportunity store, event channel or archive",
	}, []string{"sink"})
)
