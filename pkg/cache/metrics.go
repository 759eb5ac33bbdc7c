package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreReads tracks store reads by backend and result
	StoreReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedcache_store_reads_total",
			Help: "Total number of cache store reads",
		},
		[]string{"backend", "result"}, // "sqlite"|"redis", "found"|"miss"|"error"
	)

	// StoreWrites tracks successful whole-entry writes by backend
	StoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedcache_store_writes_total",
			Help: "Total number of cache entries written",
		},
		[]string{"backend"},
	)

	// EntrySize tracks the encoded size of written entries
	EntrySize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedcache_entry_size_bytes",
			Help:    "Encoded size of cache entries in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"backend"},
	)

	// StoreErrors tracks store operation errors
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedcache_store_errors_total",
			Help: "Total number of cache store operation errors",
		},
		[]string{"backend", "operation"}, // "read", "write", "prune"
	)

	// EntriesPruned tracks entries removed by Prune
	EntriesPruned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedcache_entries_pruned_total",
			Help: "Total number of cache entries removed by pruning",
		},
		[]string{"backend"},
	)
)
