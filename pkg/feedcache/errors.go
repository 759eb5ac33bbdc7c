package feedcache

import "errors"

// ErrProtocolViolation is returned when a source answers in a way the cache
// cannot act on, such as Not Modified for a URL with no cached entry.
var ErrProtocolViolation = errors.New("feed source protocol violation")
