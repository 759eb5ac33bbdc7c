package feedcache

import (
	"github.com/Sternrassler/feedcache/pkg/cache"
)

// Outcome describes how a fetch was answered.
type Outcome string

const (
	// OutcomeFresh means the stored entry was still fresh; the origin was
	// not contacted.
	OutcomeFresh Outcome = "fresh"

	// OutcomeNotModified means the origin confirmed the stored content and
	// the entry was written back with a new expiry.
	OutcomeNotModified Outcome = "not_modified"

	// OutcomeUpdated means the origin returned new content which replaced
	// the stored entry.
	OutcomeUpdated Outcome = "updated"

	// OutcomeTerminal means the origin answered with a final non-success
	// status. Nothing was written.
	OutcomeTerminal Outcome = "terminal"
)

// Result is the answer to a Fetch.
type Result struct {
	URL string

	// Entry is the current cache entry. Nil for OutcomeTerminal.
	Entry *cache.CacheEntry

	Outcome Outcome

	// StatusCode is the origin's HTTP status. Zero for OutcomeFresh.
	StatusCode int
}
