package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const backendRedis = "redis"

// RedisStore keeps cache entries in Redis, one JSON document per feed URL.
//
// Entries are stored without a Redis TTL: a stale entry still carries the
// ETag and Last-Modified tokens needed for conditional revalidation.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a new cache store with Redis backend.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
	}
}

// Read retrieves the entry stored under url.
// Returns ErrCacheMiss if the key doesn't exist.
func (s *RedisStore) Read(ctx context.Context, url string) (*CacheEntry, error) {
	data, err := s.redis.Get(ctx, Key(url)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			StoreReads.WithLabelValues(backendRedis, "miss").Inc()
			return nil, ErrCacheMiss
		}
		return nil, s.fail("read", url, fmt.Errorf("redis get: %w", err))
	}

	entry, err := decodeEntry(data)
	if err != nil {
		return nil, s.fail("read", url, err)
	}

	StoreReads.WithLabelValues(backendRedis, "found").Inc()
	return entry, nil
}

// Write replaces the entry stored under url with a single SET.
func (s *RedisStore) Write(ctx context.Context, url string, entry *CacheEntry) error {
	if err := validateEntry(url, entry); err != nil {
		return err
	}
	data, err := encodeEntry(url, entry)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, Key(url), data, 0).Err(); err != nil {
		return s.fail("write", url, fmt.Errorf("redis set: %w", err))
	}

	StoreWrites.WithLabelValues(backendRedis).Inc()
	EntrySize.WithLabelValues(backendRedis).Observe(float64(len(data)))
	return nil
}

// Prune deletes entries last written before updatedBefore.
// Keys are walked with SCAN so large stores do not block Redis.
func (s *RedisStore) Prune(ctx context.Context, updatedBefore time.Time) (int, error) {
	removed := 0
	iter := s.redis.Scan(ctx, 0, KeyPrefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.redis.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, s.fail("prune", "", fmt.Errorf("redis get %s: %w", key, err))
		}

		var meta struct {
			UpdatedAt time.Time `json:"updated_at"`
		}
		if err := json.Unmarshal(data, &meta); err == nil && !meta.UpdatedAt.Before(updatedBefore) {
			continue
		}

		if err := s.redis.Del(ctx, key).Err(); err != nil {
			return removed, s.fail("prune", "", fmt.Errorf("redis del %s: %w", key, err))
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, s.fail("prune", "", fmt.Errorf("redis scan: %w", err))
	}

	EntriesPruned.WithLabelValues(backendRedis).Add(float64(removed))
	return removed, nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.redis.Close()
}

func (s *RedisStore) fail(op, url string, err error) error {
	StoreErrors.WithLabelValues(backendRedis, op).Inc()
	if op == "read" {
		StoreReads.WithLabelValues(backendRedis, "error").Inc()
	}
	return &StoreError{Op: op, URL: url, Err: err}
}
