package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCacheMiss indicates the requested URL was never cached or the store
	// does not exist yet
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is the durable mapping from feed URL to CacheEntry.
//
// Implementations serialize access within one process: concurrent readers
// never observe a partially written entry. Sharing one store between
// processes is not supported; concurrent writers in different processes may
// overwrite each other.
type Store interface {
	// Read returns the stored entry, or ErrCacheMiss if there is none.
	// Any other failure is a *StoreError.
	Read(ctx context.Context, url string) (*CacheEntry, error)

	// Write replaces the entry stored under url. The write is durable
	// when Write returns nil.
	Write(ctx context.Context, url string, entry *CacheEntry) error

	// Prune deletes entries last written before updatedBefore and returns
	// how many were removed.
	Prune(ctx context.Context, updatedBefore time.Time) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// StoreError reports a store that exists but cannot be read or written.
type StoreError struct {
	Op  string // "read", "write", "prune"
	URL string
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("cache store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache store %s %s: %v", e.Op, e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// validateEntry checks the invariants every stored entry must satisfy.
func validateEntry(url string, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry cannot be nil", ErrInvalidEntry)
	}
	if url == "" {
		return fmt.Errorf("%w: url cannot be empty", ErrInvalidEntry)
	}
	if entry.URL != "" && entry.URL != url {
		return fmt.Errorf("%w: entry url %q does not match key %q", ErrInvalidEntry, entry.URL, url)
	}
	if entry.ExpireAt.IsZero() {
		return fmt.Errorf("%w: expire_at must be set", ErrInvalidEntry)
	}
	return nil
}
