// Package feedcache serves feeds from a persistent cache and revalidates them
// against their origin once stale.
//
// Each Fetch reads the stored entry for the URL. While the entry's expiry
// lies in the future it is returned as is and the origin is not contacted.
// Otherwise the source is asked with the entry's ETag and Last-Modified as
// conditional request hints, and the answer decides what is written back:
//
//   - 304 Not Modified: the stored content is kept, the expiry is recomputed
//     from the 304 headers.
//   - 2xx: the new content replaces the entry.
//   - terminal status (404, 410): nothing is written and the status is
//     reported in the Result.
//
// Expiry is the smaller of the origin's Cache-Control max-age and the
// configured ceiling (default 20 minutes), so a feed is never served from
// cache for longer than the ceiling without revalidation.
//
// Example usage:
//
//	store, _ := cache.NewSQLiteStore("/var/cache/feeds.db")
//	fc, err := feedcache.New(feedcache.Config{
//		Store:  store,
//		Source: source.NewHTTPSource(source.DefaultHTTPConfig()),
//	})
//	if err != nil {
//		return err
//	}
//	res, err := fc.Fetch(ctx, "https://example.com/feed.xml")
//	if err != nil {
//		return err
//	}
//	if res.Outcome == feedcache.OutcomeTerminal {
//		// origin answered res.StatusCode
//	}
//
// Concurrent fetches of the same stale URL are not coalesced; each one
// revalidates and the last write wins.
package feedcache
