package feedcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// fetchTotal tracks completed fetches by outcome
	fetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedcache_fetch_total",
			Help: "Total number of feed fetches by outcome",
		},
		[]string{"outcome"}, // fresh, not_modified, updated, terminal, error
	)

	// fetchDuration tracks end-to-end fetch latency
	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedcache_fetch_duration_seconds",
			Help:    "Feed fetch duration in seconds by outcome",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"outcome"},
	)

	// batchFeeds tracks the number of feeds per FetchAll call
	batchFeeds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feedcache_batch_feeds",
			Help:    "Number of distinct feeds requested per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		},
	)
)
