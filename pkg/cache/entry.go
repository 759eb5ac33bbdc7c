package cache

import (
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// CacheEntry represents one feed's last known good state plus the metadata
// needed to revalidate it against the origin.
type CacheEntry struct {
	// URL is the cache key. It is never changed once the entry exists.
	URL string `json:"url"`

	// Feed is the parsed feed content returned by the feed source.
	Feed *gofeed.Feed `json:"feed"`

	// ETag for conditional requests (If-None-Match). Empty when the origin sent none.
	ETag string `json:"etag,omitempty"`

	// LastModified is the origin's Last-Modified token, kept verbatim
	// for If-Modified-Since. Empty when the origin sent none.
	LastModified string `json:"last_modified,omitempty"`

	// Headers are the response headers of the most recent successful retrieval
	Headers http.Header `json:"headers,omitempty"`

	// ExpireAt is when the entry becomes stale
	ExpireAt time.Time `json:"expire_at"`

	// UpdatedAt is when the entry was last written
	UpdatedAt time.Time `json:"updated_at"`
}

// IsExpired reports whether the entry is stale at the given time.
func (e *CacheEntry) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpireAt)
}

// TTL returns the remaining freshness at the given time.
// Returns 0 if already expired.
func (e *CacheEntry) TTL(now time.Time) time.Duration {
	ttl := e.ExpireAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
