// Package source retrieves and parses feeds from their origin.
//
// A Source is the single network-and-parse operation the feed cache depends
// on. It receives the conditional request hints derived from a cached entry
// and reports one of three outcomes: new content, not modified, or a terminal
// origin status. Transport and parse failures are returned as *Error.
package source

import (
	"context"
	"net/http"

	"github.com/Sternrassler/feedcache/pkg/cache"
	"github.com/mmcdole/gofeed"
)

// Status classifies a completed retrieval.
type Status string

const (
	// StatusOK means the origin returned new content.
	StatusOK Status = "ok"

	// StatusNotModified means the origin confirmed the cached content is current.
	StatusNotModified Status = "not_modified"

	// StatusTerminal means the origin answered with a final non-success
	// status such as 404 Not Found or 410 Gone.
	StatusTerminal Status = "terminal"
)

// Response is the result of a retrieval.
type Response struct {
	Status Status

	// StatusCode is the HTTP status code returned by the origin.
	StatusCode int

	// Feed is the parsed content. Set only for StatusOK.
	Feed *gofeed.Feed

	// Headers are the origin's response headers.
	Headers http.Header

	// ETag and LastModified are the new precondition tokens, empty when the
	// origin sent none.
	ETag         string
	LastModified string
}

// Source fetches a feed, honoring conditional request hints. Empty hints
// mean an unconditional fetch.
type Source interface {
	Retrieve(ctx context.Context, url string, hints cache.Hints) (*Response, error)
}

// Func adapts an ordinary function to the Source interface.
type Func func(ctx context.Context, url string, hints cache.Hints) (*Response, error)

// Retrieve calls f(ctx, url, hints).
func (f Func) Retrieve(ctx context.Context, url string, hints cache.Hints) (*Response, error) {
	return f(ctx, url, hints)
}
