package config

import (
	"context"
	"fmt"

	"github.com/Sternrassler/feedcache/pkg/cache"
	"github.com/Sternrassler/feedcache/pkg/feedcache"
	"github.com/Sternrassler/feedcache/pkg/logging"
	"github.com/Sternrassler/feedcache/pkg/source"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// OpenStore opens the configured cache store. A Redis store is pinged
// before it is returned.
func (c *Config) OpenStore(ctx context.Context) (cache.Store, error) {
	switch c.Store.Backend {
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr: c.Store.RedisAddr,
			DB:   c.Store.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", c.Store.RedisAddr, err)
		}
		return cache.NewRedisStore(client), nil
	default:
		return cache.NewSQLiteStore(c.Store.Path)
	}
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:  logging.LogLevel(c.Log.Level),
		Pretty: c.Log.Pretty,
	}
}

// SetupLogging configures the global logger from c.
func (c *Config) SetupLogging() zerolog.Logger {
	return logging.Setup(c.Logging())
}

// HTTPSource returns the configured HTTP feed source.
func (c *Config) HTTPSource() *source.HTTPSource {
	retry := source.DefaultRetryConfig()
	retry.MaxAttempts = c.Source.MaxAttempts

	return source.NewHTTPSource(source.HTTPConfig{
		UserAgent:    c.Source.UserAgent,
		Timeout:      c.Source.Timeout,
		MaxBodyBytes: c.Source.MaxBodyBytes,
		Retry:        retry,
	})
}

// FeedCache builds a FeedCache over store with the configured source,
// ceiling and batch limits.
func (c *Config) FeedCache(store cache.Store) (*feedcache.FeedCache, error) {
	return feedcache.New(feedcache.Config{
		Store:   store,
		Source:  c.HTTPSource(),
		Ceiling: c.Cache.Ceiling,
		Batch: feedcache.BatchConfig{
			MaxConcurrency: c.Batch.MaxConcurrency,
			Timeout:        c.Batch.Timeout,
			MaxFeeds:       c.Batch.MaxFeeds,
		},
	})
}
