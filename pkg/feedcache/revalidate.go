package feedcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/feedcache/pkg/cache"
	"github.com/Sternrassler/feedcache/pkg/source"
	"github.com/rs/zerolog"
)

// coordinator decides per fetch whether the stored entry can be served or
// the origin must be asked, and persists what the origin answers.
type coordinator struct {
	store  cache.Store
	source source.Source
	policy cache.Policy
	now    func() time.Time
	logger zerolog.Logger
}

// fetch runs one revalidation cycle for url. url must already be normalized.
func (c *coordinator) fetch(ctx context.Context, url string) (*Result, error) {
	start := time.Now()
	outcome := "error"
	defer func() {
		fetchTotal.WithLabelValues(outcome).Inc()
		fetchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	prior, err := c.store.Read(ctx, url)
	switch {
	case errors.Is(err, cache.ErrCacheMiss):
		prior = nil
	case err != nil:
		c.logger.Error().Err(err).Str("url", url).Msg("Cache read failed")
		return nil, err
	}

	if c.policy.IsFresh(prior, c.now()) {
		c.logger.Debug().
			Str("url", url).
			Time("expire_at", prior.ExpireAt).
			Msg("Serving fresh entry")
		outcome = string(OutcomeFresh)
		return &Result{URL: url, Entry: prior, Outcome: OutcomeFresh}, nil
	}

	hints := c.policy.ConditionalHints(prior)
	if !hints.IsZero() {
		c.logger.Debug().
			Str("url", url).
			Str("etag", hints.ETag).
			Str("last_modified", hints.LastModified).
			Msg("Revalidating stale entry")
	}

	resp, err := c.source.Retrieve(ctx, url, hints)
	if err != nil {
		err = source.AsError(url, err)
		c.logger.Warn().
			Err(err).
			Str("url", url).
			Str("error_class", string(source.Class(err))).
			Msg("Feed source failed")
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: %s: nil response", ErrProtocolViolation, url)
	}

	var entry *cache.CacheEntry
	switch resp.Status {
	case source.StatusTerminal:
		c.logger.Warn().
			Str("url", url).
			Int("status_code", resp.StatusCode).
			Msg("Origin returned terminal status")
		outcome = string(OutcomeTerminal)
		return &Result{URL: url, Outcome: OutcomeTerminal, StatusCode: resp.StatusCode}, nil

	case source.StatusNotModified:
		if prior == nil {
			c.logger.Error().Str("url", url).Msg("Not modified reported for uncached feed")
			return nil, fmt.Errorf("%w: %s: not modified without a cached entry", ErrProtocolViolation, url)
		}
		entry = c.revalidated(url, prior, resp)

	case source.StatusOK:
		if resp.Feed == nil {
			return nil, fmt.Errorf("%w: %s: ok response without feed", ErrProtocolViolation, url)
		}
		entry = c.replaced(url, resp)

	default:
		return nil, fmt.Errorf("%w: %s: unknown status %q", ErrProtocolViolation, url, resp.Status)
	}

	if err := c.store.Write(ctx, url, entry); err != nil {
		c.logger.Error().Err(err).Str("url", url).Msg("Cache write failed")
		return nil, err
	}

	result := &Result{URL: url, Entry: entry, StatusCode: resp.StatusCode}
	if resp.Status == source.StatusNotModified {
		result.Outcome = OutcomeNotModified
	} else {
		result.Outcome = OutcomeUpdated
	}
	outcome = string(result.Outcome)

	c.logger.Info().
		Str("url", url).
		Str("outcome", outcome).
		Int("status_code", resp.StatusCode).
		Str("etag", entry.ETag).
		Dur("ttl", entry.ExpireAt.Sub(entry.UpdatedAt)).
		Msg("Feed revalidated")

	return result, nil
}

// revalidated builds the entry that replaces prior after a 304. The content
// is carried over; validators and headers from the 304 take precedence.
func (c *coordinator) revalidated(url string, prior *cache.CacheEntry, resp *source.Response) *cache.CacheEntry {
	now := c.now()

	headers := prior.Headers.Clone()
	if headers == nil {
		headers = make(http.Header)
	}
	for k, v := range resp.Headers {
		headers[k] = append([]string(nil), v...)
	}

	entry := &cache.CacheEntry{
		URL:          url,
		Feed:         prior.Feed,
		ETag:         prior.ETag,
		LastModified: prior.LastModified,
		Headers:      headers,
		ExpireAt:     c.policy.ComputeExpiry(now, resp.Headers),
		UpdatedAt:    now,
	}
	if resp.ETag != "" {
		entry.ETag = resp.ETag
	}
	if resp.LastModified != "" {
		entry.LastModified = resp.LastModified
	}
	return entry
}

// replaced builds a new entry from a 2xx response.
func (c *coordinator) replaced(url string, resp *source.Response) *cache.CacheEntry {
	now := c.now()
	return &cache.CacheEntry{
		URL:          url,
		Feed:         resp.Feed,
		ETag:         resp.ETag,
		LastModified: resp.LastModified,
		Headers:      resp.Headers.Clone(),
		ExpireAt:     c.policy.ComputeExpiry(now, resp.Headers),
		UpdatedAt:    now,
	}
}
