package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	listingsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_catalog_listings_fetched_total",
		Help: "Listings accepted from platform catalogs",
	}, []string{"platform"})

	malformedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_catalog_malformed_records_total",
		Help: "Upstream listing records skipped because they failed to parse",
	}, []string{"platform"})

	pageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscan_catalog_page_errors_total",
		Help: "Catalog page requests that failed and ended pagination",
	}, []string{"platform"})
)
