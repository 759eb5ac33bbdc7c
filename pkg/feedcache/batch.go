package feedcache

import (
	"context"
	"time"

	"github.com/Sternrassler/feedcache/pkg/cache"
	"golang.org/x/sync/errgroup"
)

// BatchConfig holds FetchAll configuration.
type BatchConfig struct {
	// MaxConcurrency is the maximum number of feeds fetched in parallel
	MaxConcurrency int

	// Timeout bounds each feed's fetch, retries included
	Timeout time.Duration

	// MaxFeeds caps the number of distinct feeds per batch; the rest are
	// dropped
	MaxFeeds int
}

// DefaultBatchConfig returns the default batch configuration.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrency: 10,
		Timeout:        2 * time.Minute,
		MaxFeeds:       100,
	}
}

func (c BatchConfig) withDefaults() BatchConfig {
	def := DefaultBatchConfig()
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = def.MaxConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.MaxFeeds <= 0 {
		c.MaxFeeds = def.MaxFeeds
	}
	return c
}

// BatchResult is the outcome of one feed in a FetchAll call. Exactly one of
// Result and Err is set.
type BatchResult struct {
	URL    string
	Result *Result
	Err    error
}

// FetchAll fetches urls in parallel. Duplicate URLs (after normalization)
// are fetched once and empty ones skipped. Results keep the order of first
// appearance. A failing feed does not cancel the others.
func (fc *FeedCache) FetchAll(ctx context.Context, urls []string) []BatchResult {
	start := time.Now()

	keys := fc.dedupe(urls)
	batchFeeds.Observe(float64(len(keys)))
	results := make([]BatchResult, len(keys))
	if len(keys) == 0 {
		return results
	}

	fc.logger.Info().
		Int("feeds", len(keys)).
		Int("concurrency", fc.batch.MaxConcurrency).
		Msg("Starting batch fetch")

	var g errgroup.Group
	g.SetLimit(fc.batch.MaxConcurrency)

	for i, key := range keys {
		g.Go(func() error {
			feedCtx, cancel := context.WithTimeout(ctx, fc.batch.Timeout)
			defer cancel()

			res, err := fc.coord.fetch(feedCtx, key)
			results[i] = BatchResult{URL: key, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}

	fc.logger.Info().
		Int("feeds", len(keys)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	return results
}

func (fc *FeedCache) dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	keys := make([]string, 0, len(urls))
	for _, u := range urls {
		key, err := normalize(u)
		if err != nil {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	if len(keys) > fc.batch.MaxFeeds {
		fc.logger.Warn().
			Int("requested", len(keys)).
			Int("max_feeds", fc.batch.MaxFeeds).
			Msg("Batch exceeds feed limit, dropping excess feeds")
		keys = keys[:fc.batch.MaxFeeds]
	}
	return keys
}

// Entries returns the entries of the successful, non-terminal results.
func Entries(results []BatchResult) []*cache.CacheEntry {
	out := make([]*cache.CacheEntry, 0, len(results))
	for _, r := range results {
		if r.Err == nil && r.Result.Entry != nil {
			out = append(out, r.Result.Entry)
		}
	}
	return out
}
