package collection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collection_pages_fetched_total",
		Help: "Collection pages fetched by outcome (ok, not_found, error, stale)",
	}, []string{"outcome"})

	pageFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "collection_page_fetch_duration_seconds",
		Help:    "Duration of a single collection page fetch in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	itemsMergedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collection_items_merged_total",
		Help: "Items added to a collection after deduplication",
	})

	bulkLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collection_bulk_loads_total",
		Help: "Bulk loads by result (complete, partial)",
	}, []string{"result"})
)
