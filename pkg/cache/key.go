package cache

import (
	"net/url"
	"strings"
)

// KeyPrefix namespaces feed entries in shared key/value backends.
const KeyPrefix = "feedcache"

// NormalizeURL returns the canonical form of a feed URL used as cache key.
// Scheme and host are lower-cased and the fragment is dropped; the path and
// query are kept verbatim. Unparseable input is returned trimmed.
//
// Example:
//
//	NormalizeURL(" HTTPS://Example.COM/feed.xml#top ") == "https://example.com/feed.xml"
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return trimmed
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// Key returns the namespaced backend key for a feed URL.
// Format: feedcache:<normalized url>
func Key(feedURL string) string {
	return KeyPrefix + ":" + NormalizeURL(feedURL)
}
