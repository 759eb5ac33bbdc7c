package cache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultCeiling is the longest a feed is trusted without revalidation
	// when no ceiling is configured.
	DefaultCeiling = 20 * time.Minute
)

// Hints are the precondition tokens sent to the origin on revalidation.
// An empty field means the precondition is absent.
type Hints struct {
	ETag         string
	LastModified string
}

// IsZero reports whether neither precondition is present.
func (h Hints) IsZero() bool {
	return h.ETag == "" && h.LastModified == ""
}

// Policy decides whether a cache entry is fresh and how long a new response
// may be trusted. It performs no I/O.
type Policy struct {
	// Ceiling caps the freshness window regardless of the origin's max-age.
	Ceiling time.Duration
}

// NewPolicy returns a policy with the given ceiling.
// A non-positive ceiling falls back to DefaultCeiling.
func NewPolicy(ceiling time.Duration) Policy {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return Policy{Ceiling: ceiling}
}

// IsFresh returns true iff now is strictly before entry.ExpireAt.
func (p Policy) IsFresh(entry *CacheEntry, now time.Time) bool {
	if entry == nil {
		return false
	}
	return now.Before(entry.ExpireAt)
}

// ConditionalHints extracts the revalidation preconditions from a possibly
// nil entry. The weak validator prefix is dropped from the ETag.
func (p Policy) ConditionalHints(entry *CacheEntry) Hints {
	if entry == nil {
		return Hints{}
	}
	return Hints{
		ETag:         strings.TrimPrefix(entry.ETag, "W/"),
		LastModified: entry.LastModified,
	}
}

// ComputeExpiry returns now plus the freshness window derived from the
// Cache-Control max-age directive, capped at the ceiling. Without a usable
// max-age the window is the ceiling.
func (p Policy) ComputeExpiry(now time.Time, headers http.Header) time.Time {
	window := p.Ceiling
	if maxAge, ok := MaxAge(headers); ok && maxAge < window {
		window = maxAge
	}
	return now.Add(window)
}

// MaxAge parses the max-age directive of the Cache-Control header.
// Returns false if the header or directive is missing or malformed.
func MaxAge(headers http.Header) (time.Duration, bool) {
	if headers == nil {
		return 0, false
	}
	for _, value := range headers.Values("Cache-Control") {
		for _, directive := range strings.Split(value, ",") {
			name, arg, found := strings.Cut(strings.TrimSpace(directive), "=")
			if !found || !strings.EqualFold(strings.TrimSpace(name), "max-age") {
				continue
			}
			arg = strings.Trim(strings.TrimSpace(arg), `"`)
			seconds, err := strconv.ParseInt(arg, 10, 64)
			if err != nil || seconds < 0 {
				return 0, false
			}
			// Clamp before multiplying so huge values cannot overflow.
			if seconds > int64(maxDuration/time.Second) {
				return maxDuration, true
			}
			return time.Duration(seconds) * time.Second, true
		}
	}
	return 0, false
}

const maxDuration = time.Duration(1<<63 - 1)
