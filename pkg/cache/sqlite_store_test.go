package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return store
}

func testEntry(url string, now time.Time) *CacheEntry {
	return &CacheEntry{
		URL: url,
		Feed: &gofeed.Feed{
			Title: "Example Feed",
			Link:  "https://example.com/",
			Items: []*gofeed.Item{
				{Title: "First post", Link: "https://example.com/1", GUID: "1"},
			},
		},
		ETag:         `"abc123"`,
		LastModified: "Sun, 01 Mar 2026 11:00:00 GMT",
		Headers:      http.Header{"Cache-Control": []string{"max-age=300"}},
		ExpireAt:     now.Add(5 * time.Minute),
		UpdatedAt:    now,
	}
}

func TestNewSQLiteStore(t *testing.T) {
	if _, err := NewSQLiteStore(""); err == nil {
		t.Error("NewSQLiteStore with empty path should return error")
	}

	store := newTestSQLiteStore(t)
	if !filepath.IsAbs(store.Path()) {
		t.Errorf("Path() = %q, want absolute path", store.Path())
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Errorf("store file should not exist before first write, stat err = %v", err)
	}
}

func TestSQLiteStore_Read_MissingStore(t *testing.T) {
	store := newTestSQLiteStore(t)

	_, err := store.Read(context.Background(), "https://example.com/feed.xml")
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Error("Read must not create the store file")
	}
}

func TestSQLiteStore_WriteAndRead(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	url := "https://example.com/feed.xml"
	entry := testEntry(url, now)

	if err := store.Write(ctx, url, entry); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := store.Read(ctx, url)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if got.URL != url {
		t.Errorf("URL = %q, want %q", got.URL, url)
	}
	if got.ETag != entry.ETag {
		t.Errorf("ETag = %q, want %q", got.ETag, entry.ETag)
	}
	if got.LastModified != entry.LastModified {
		t.Errorf("LastModified = %q, want %q", got.LastModified, entry.LastModified)
	}
	if !got.ExpireAt.Equal(entry.ExpireAt) {
		t.Errorf("ExpireAt = %v, want %v", got.ExpireAt, entry.ExpireAt)
	}
	if !got.UpdatedAt.Equal(entry.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, entry.UpdatedAt)
	}
	if got.Headers.Get("Cache-Control") != "max-age=300" {
		t.Errorf("Headers = %v, want Cache-Control max-age=300", got.Headers)
	}
	if got.Feed == nil || got.Feed.Title != "Example Feed" || len(got.Feed.Items) != 1 {
		t.Errorf("Feed not round-tripped: %+v", got.Feed)
	}
}

func TestSQLiteStore_PathWithURIChars(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{name: "hash", file: "a#b.db"},
		{name: "question mark", file: "a?b.db"},
		{name: "percent escape", file: "a%20b.db"},
		{name: "space", file: "a b.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			store, err := NewSQLiteStore(filepath.Join(dir, tt.file))
			if err != nil {
				t.Fatalf("NewSQLiteStore failed: %v", err)
			}
			ctx := context.Background()
			url := "https://example.com/feed.xml"

			if err := store.Write(ctx, url, testEntry(url, time.Now())); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			got, err := store.Read(ctx, url)
			if err != nil {
				t.Fatalf("Read after Write failed: %v", err)
			}
			if got.ETag != `"abc123"` {
				t.Errorf("ETag = %q, want %q", got.ETag, `"abc123"`)
			}

			files, err := os.ReadDir(dir)
			if err != nil {
				t.Fatalf("ReadDir failed: %v", err)
			}
			if len(files) != 1 || files[0].Name() != tt.file {
				names := make([]string, 0, len(files))
				for _, f := range files {
					names = append(names, f.Name())
				}
				t.Errorf("files in store dir = %v, want [%s]", names, tt.file)
			}
		})
	}
}

func TestSQLiteStore_Read_UnknownURL(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.Write(ctx, "https://example.com/a.xml", testEntry("https://example.com/a.xml", now)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	_, err := store.Read(ctx, "https://example.com/b.xml")
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestSQLiteStore_Write_ReplacesWholeEntry(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now()
	url := "https://example.com/feed.xml"

	if err := store.Write(ctx, url, testEntry(url, now)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	replacement := &CacheEntry{
		URL:       url,
		Feed:      &gofeed.Feed{Title: "Replaced"},
		ExpireAt:  now.Add(time.Minute),
		UpdatedAt: now.Add(time.Second),
	}
	if err := store.Write(ctx, url, replacement); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := store.Read(ctx, url)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Feed.Title != "Replaced" {
		t.Errorf("Feed.Title = %q, want Replaced", got.Feed.Title)
	}
	if got.ETag != "" || got.LastModified != "" || got.Headers != nil {
		t.Errorf("old fields leaked into replacement: %+v", got)
	}
}

func TestSQLiteStore_Write_InvalidEntry(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	url := "https://example.com/feed.xml"

	tests := []struct {
		name  string
		url   string
		entry *CacheEntry
	}{
		{name: "nil entry", url: url, entry: nil},
		{name: "empty url", url: "", entry: &CacheEntry{ExpireAt: time.Now()}},
		{name: "zero expire_at", url: url, entry: &CacheEntry{URL: url}},
		{name: "mismatched url", url: url, entry: &CacheEntry{URL: "https://other.example/", ExpireAt: time.Now()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Write(ctx, tt.url, tt.entry)
			if !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("Expected ErrInvalidEntry, got %v", err)
			}
		})
	}

	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Error("rejected writes must not create the store file")
	}
}

func TestSQLiteStore_Read_CorruptedStore(t *testing.T) {
	store := newTestSQLiteStore(t)

	garbage := make([]byte, 4096)
	for i := range garbage {
		garbage[i] = byte(i * 7)
	}
	if err := os.WriteFile(store.Path(), garbage, 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	_, err := store.Read(context.Background(), "https://example.com/feed.xml")
	if err == nil {
		t.Fatal("Read on corrupted store should fail")
	}
	if errors.Is(err, ErrCacheMiss) {
		t.Fatal("corrupted store must not be reported as a cache miss")
	}
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("Expected *StoreError, got %T: %v", err, err)
	}
	if storeErr.Op != "read" {
		t.Errorf("Op = %q, want read", storeErr.Op)
	}
}

func TestSQLiteStore_Prune(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Pruning a store that was never written is a no-op.
	n, err := store.Prune(ctx, now)
	if err != nil || n != 0 {
		t.Fatalf("Prune on missing store = (%d, %v), want (0, nil)", n, err)
	}

	old := testEntry("https://example.com/old.xml", now.Add(-2*time.Hour))
	recent := testEntry("https://example.com/recent.xml", now.Add(-time.Minute))
	for _, e := range []*CacheEntry{old, recent} {
		if err := store.Write(ctx, e.URL, e); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	n, err = store.Prune(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Prune removed %d entries, want 1", n)
	}

	if _, err := store.Read(ctx, old.URL); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("old entry should be pruned, got %v", err)
	}
	if _, err := store.Read(ctx, recent.URL); err != nil {
		t.Errorf("recent entry should survive, got %v", err)
	}
}

func TestSQLiteStore_ConcurrentAccess(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now()
	url := "https://example.com/feed.xml"

	if err := store.Write(ctx, url, testEntry(url, now)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			e := testEntry(url, now)
			e.ETag = fmt.Sprintf(`"v%d"`, i)
			if err := store.Write(ctx, url, e); err != nil {
				errs <- err
			}
		}(i)
		go func() {
			defer wg.Done()
			got, err := store.Read(ctx, url)
			if err != nil {
				errs <- err
				return
			}
			if got.Feed == nil || got.Feed.Title != "Example Feed" {
				errs <- fmt.Errorf("partial entry observed: %+v", got)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent access: %v", err)
	}
}
