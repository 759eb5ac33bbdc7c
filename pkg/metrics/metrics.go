// Package metrics exposes the feed cache's Prometheus metrics.
// All metrics are defined in their respective packages (cache, source,
// feedcache) to maintain modularity and avoid circular dependencies.
//
// This package provides the HTTP handler and a reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the feed cache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler serving all registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Store Metrics (pkg/cache):
//   - feedcache_store_reads_total{backend, result} (Counter): Reads by backend and result (found, miss, error)
//   - feedcache_store_writes_total{backend} (Counter): Entries written
//   - feedcache_entry_size_bytes{backend} (Histogram): Encoded entry size
//   - feedcache_store_errors_total{backend, operation} (Counter): Store errors by operation (read, write, prune)
//   - feedcache_entries_pruned_total{backend} (Counter): Entries removed by Prune
//
// Fetch Metrics (pkg/feedcache):
//   - feedcache_fetch_total{outcome} (Counter): Fetches by outcome (fresh, not_modified, updated, terminal, error)
//   - feedcache_fetch_duration_seconds{outcome} (Histogram): Fetch duration by outcome
//   - feedcache_batch_feeds (Histogram): Distinct feeds per FetchAll call
//
// Origin Metrics (pkg/source):
//   - feedcache_origin_requests_total{status} (Counter): Origin requests by HTTP status
//   - feedcache_origin_request_duration_seconds (Histogram): Retrieval duration including retries
//   - feedcache_origin_errors_total{class} (Counter): Failed retrievals by error class
//   - feedcache_conditional_requests_total (Counter): Requests sent with If-None-Match or If-Modified-Since
//
// Retry Metrics (pkg/source):
//   - feedcache_retries_total{error_class} (Counter): Retry attempts by error class
//   - feedcache_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - feedcache_retry_exhausted_total{error_class} (Counter): Retrievals that exhausted max retries
//
// Example Prometheus Queries:
//
//   # Fresh Hit Rate
//   sum(rate(feedcache_fetch_total{outcome="fresh"}[5m])) /
//   sum(rate(feedcache_fetch_total[5m]))
//
//   # Revalidations Answered With 304
//   rate(feedcache_fetch_total{outcome="not_modified"}[5m]) /
//   rate(feedcache_conditional_requests_total[5m])
//
//   # Origin Error Rate
//   rate(feedcache_origin_errors_total[5m])
//
//   # P95 Fetch Latency
//   histogram_quantile(0.95, rate(feedcache_fetch_duration_seconds_bucket[5m]))
