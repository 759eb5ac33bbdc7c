package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a test Redis client for testing.
// Tests are skipped when no local Redis is reachable; the integration
// suite runs the same store against a container.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	// Ping to check connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	// Flush test DB before each test
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewRedisStore(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	store := NewRedisStore(client)
	if store == nil {
		t.Fatal("NewRedisStore returned nil")
	}
	if store.redis != client {
		t.Error("RedisStore redis client not set correctly")
	}
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore(nil)
}

func TestRedisStore_WriteAndRead(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t))
	ctx := context.Background()
	url := "https://example.com/feed.xml"
	entry := testEntry(url, time.Now())

	if err := store.Write(ctx, url, entry); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := store.Read(ctx, url)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.ETag != entry.ETag {
		t.Errorf("ETag mismatch: got %s, want %s", got.ETag, entry.ETag)
	}
	if !got.ExpireAt.Equal(entry.ExpireAt) {
		t.Errorf("ExpireAt mismatch: got %v, want %v", got.ExpireAt, entry.ExpireAt)
	}
	if got.Feed == nil || got.Feed.Title != entry.Feed.Title {
		t.Errorf("Feed mismatch: got %+v", got.Feed)
	}
}

func TestRedisStore_Read_CacheMiss(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t))

	_, err := store.Read(context.Background(), "https://example.com/nonexistent.xml")
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestRedisStore_Read_StaleEntryKept(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t))
	ctx := context.Background()
	url := "https://example.com/feed.xml"

	entry := testEntry(url, time.Now().Add(-time.Hour))
	entry.ExpireAt = time.Now().Add(-30 * time.Minute)

	if err := store.Write(ctx, url, entry); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := store.Read(ctx, url)
	if err != nil {
		t.Fatalf("stale entries must stay readable for revalidation, got %v", err)
	}
	if got.ETag != entry.ETag {
		t.Errorf("ETag mismatch: got %s, want %s", got.ETag, entry.ETag)
	}
}

func TestRedisStore_Read_Corrupted(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()
	url := "https://example.com/feed.xml"

	if err := client.Set(ctx, Key(url), "{not json", 0).Err(); err != nil {
		t.Fatalf("seed corrupted value: %v", err)
	}

	_, err := store.Read(ctx, url)
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("Expected *StoreError, got %v", err)
	}
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry in chain, got %v", err)
	}
}

func TestRedisStore_Prune(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t))
	ctx := context.Background()
	now := time.Now()

	old := testEntry("https://example.com/old.xml", now.Add(-2*time.Hour))
	recent := testEntry("https://example.com/recent.xml", now)
	for _, e := range []*CacheEntry{old, recent} {
		if err := store.Write(ctx, e.URL, e); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	n, err := store.Prune(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Prune removed %d entries, want 1", n)
	}
	if _, err := store.Read(ctx, old.URL); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("old entry should be pruned, got %v", err)
	}
}

func TestRedisStore_Write_NilEntry(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t))

	err := store.Write(context.Background(), "https://example.com/feed.xml", nil)
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Write with nil entry should return ErrInvalidEntry, got %v", err)
	}
}
