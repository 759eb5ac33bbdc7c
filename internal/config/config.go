// Package config loads the feedcache binaries' configuration from an
// optional YAML file and FEEDCACHE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Sternrassler/feedcache/pkg/cache"
	"github.com/Sternrassler/feedcache/pkg/logging"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config is the complete configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Cache  CacheConfig  `yaml:"cache"`
	Source SourceConfig `yaml:"source"`
	Batch  BatchConfig  `yaml:"batch"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig configures the proxy's HTTP server.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects and configures the cache store.
type StoreConfig struct {
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path"`
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
}

// CacheConfig configures the freshness policy.
type CacheConfig struct {
	Ceiling time.Duration `yaml:"ceiling"`
}

// SourceConfig configures the HTTP feed source.
type SourceConfig struct {
	UserAgent    string        `yaml:"user_agent"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// BatchConfig configures multi-feed fetches.
type BatchConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxFeeds       int           `yaml:"max_feeds"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    3 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Backend:   BackendSQLite,
			Path:      "feedcache.db",
			RedisAddr: "localhost:6379",
		},
		Cache: CacheConfig{
			Ceiling: cache.DefaultCeiling,
		},
		Source: SourceConfig{
			UserAgent:    "feedcache/0.1",
			Timeout:      30 * time.Second,
			MaxAttempts:  3,
			MaxBodyBytes: 10 << 20,
		},
		Batch: BatchConfig{
			MaxConcurrency: 10,
			Timeout:        2 * time.Minute,
			MaxFeeds:       100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Addr = getEnv("FEEDCACHE_ADDR", c.Server.Addr)
	c.Store.Backend = getEnv("FEEDCACHE_STORE_BACKEND", c.Store.Backend)
	c.Store.Path = getEnv("FEEDCACHE_STORE_PATH", c.Store.Path)
	c.Store.RedisAddr = getEnv("FEEDCACHE_REDIS_ADDR", c.Store.RedisAddr)
	c.Source.UserAgent = getEnv("FEEDCACHE_USER_AGENT", c.Source.UserAgent)
	c.Log.Level = getEnv("FEEDCACHE_LOG_LEVEL", c.Log.Level)

	if v := os.Getenv("FEEDCACHE_CEILING"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FEEDCACHE_CEILING: %w", err)
		}
		c.Cache.Ceiling = d
	}
	if v := os.Getenv("FEEDCACHE_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FEEDCACHE_REDIS_DB: %w", err)
		}
		c.Store.RedisDB = n
	}
	if v := os.Getenv("FEEDCACHE_LOG_PRETTY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FEEDCACHE_LOG_PRETTY: %w", err)
		}
		c.Log.Pretty = b
	}
	return nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite backend"))
		}
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("store.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend %q: must be %s or %s", c.Store.Backend, BackendSQLite, BackendRedis))
	}

	if c.Cache.Ceiling <= 0 {
		errs = append(errs, fmt.Errorf("cache.ceiling must be positive, got %v", c.Cache.Ceiling))
	}
	if c.Source.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("source.max_attempts must be at least 1, got %d", c.Source.MaxAttempts))
	}
	if c.Batch.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("batch.max_concurrency must be at least 1, got %d", c.Batch.MaxConcurrency))
	}
	if c.Batch.MaxFeeds < 1 {
		errs = append(errs, fmt.Errorf("batch.max_feeds must be at least 1, got %d", c.Batch.MaxFeeds))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
