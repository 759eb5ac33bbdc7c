package feedcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/feedcache/pkg/cache"
	"github.com/Sternrassler/feedcache/pkg/logging"
	"github.com/Sternrassler/feedcache/pkg/source"
	"github.com/rs/zerolog"
)

// ErrInvalidURL is returned for an empty feed URL.
var ErrInvalidURL = errors.New("feed url cannot be empty")

// Config holds the FeedCache configuration.
type Config struct {
	// Store persists cache entries (required)
	Store cache.Store

	// Source retrieves feeds from their origin (required)
	Source source.Source

	// Ceiling is the maximum freshness window granted to an entry
	// (default: cache.DefaultCeiling)
	Ceiling time.Duration

	// Batch controls FetchAll
	Batch BatchConfig

	// Now overrides the clock (for testing)
	Now func() time.Time
}

// FeedCache answers feed requests from the store while fresh and revalidates
// against the source once stale. It is safe for concurrent use.
type FeedCache struct {
	store  cache.Store
	policy cache.Policy
	batch  BatchConfig
	coord  *coordinator
	logger zerolog.Logger
}

// New creates a FeedCache.
func New(cfg Config) (*FeedCache, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("feedcache: store is required")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("feedcache: source is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	logger := logging.NewLogger("feed-cache")
	policy := cache.NewPolicy(cfg.Ceiling)

	return &FeedCache{
		store:  cfg.Store,
		policy: policy,
		batch:  cfg.Batch.withDefaults(),
		coord: &coordinator{
			store:  cfg.Store,
			source: cfg.Source,
			policy: policy,
			now:    cfg.Now,
			logger: logger,
		},
		logger: logger,
	}, nil
}

// Policy returns the freshness policy in use.
func (fc *FeedCache) Policy() cache.Policy {
	return fc.policy
}

// Get returns the stored entry for url without contacting the origin,
// fresh or not. It returns cache.ErrCacheMiss if there is none.
func (fc *FeedCache) Get(ctx context.Context, url string) (*cache.CacheEntry, error) {
	key, err := normalize(url)
	if err != nil {
		return nil, err
	}
	return fc.store.Read(ctx, key)
}

// Update stores entry under url, replacing any previous entry. The entry is
// stored as given, so a later Get returns the same values. A non-empty
// entry.URL must already be in normalized form (see cache.NormalizeURL),
// otherwise cache.ErrInvalidEntry is returned.
func (fc *FeedCache) Update(ctx context.Context, url string, entry *cache.CacheEntry) error {
	key, err := normalize(url)
	if err != nil {
		return err
	}
	return fc.store.Write(ctx, key, entry)
}

// Fetch returns the feed at url, from the store when fresh and from the
// source otherwise. A terminal origin status is reported through
// Result.Outcome and leaves the store untouched.
//
// Errors are *cache.StoreError for store faults, *source.Error for source
// failures and ErrProtocolViolation for source answers that cannot be
// applied. A failed fetch never modifies the store.
func (fc *FeedCache) Fetch(ctx context.Context, url string) (*Result, error) {
	key, err := normalize(url)
	if err != nil {
		return nil, err
	}
	return fc.coord.fetch(ctx, key)
}

// Prune removes entries last written before updatedBefore.
func (fc *FeedCache) Prune(ctx context.Context, updatedBefore time.Time) (int, error) {
	n, err := fc.store.Prune(ctx, updatedBefore)
	if err != nil {
		return n, err
	}
	fc.logger.Info().
		Int("removed", n).
		Time("updated_before", updatedBefore).
		Msg("Pruned cache entries")
	return n, nil
}

// Close closes the underlying store.
func (fc *FeedCache) Close() error {
	return fc.store.Close()
}

func normalize(url string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", ErrInvalidURL
	}
	return cache.NormalizeURL(url), nil
}
