package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	backendSQLite = "sqlite"

	sqliteTable = "feed_entries"

	createTableSQL = `CREATE TABLE IF NOT EXISTS feed_entries (
	url        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

	upsertSQL = `INSERT INTO feed_entries (url, data, updated_at) VALUES (?, ?, ?)
ON CONFLICT(url) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`
)

// openMode selects how the database file is opened for one operation.
type openMode string

const (
	modeReadOnly  openMode = "ro"
	modeReadWrite openMode = "rw"
	modeCreate    openMode = "rwc"
)

// SQLiteStore keeps cache entries in a single SQLite file.
//
// Every operation opens the file in the mode it needs and closes it before
// returning, so a store that was never written to leaves no file behind.
// Reads share an in-process lock and writes take it exclusively. No file
// lock is taken: two processes writing the same file are not supported.
type SQLiteStore struct {
	path string
	mu   sync.RWMutex
}

// NewSQLiteStore returns a store backed by the SQLite file at path.
// The file is created on the first write.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite store path: %w", err)
	}
	return &SQLiteStore{path: abs}, nil
}

// Path returns the absolute path of the database file.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Read retrieves the entry stored under url.
func (s *SQLiteStore) Read(ctx context.Context, url string) (*CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exists, err := s.exists()
	if err != nil {
		return nil, s.fail("read", url, err)
	}
	if !exists {
		StoreReads.WithLabelValues(backendSQLite, "miss").Inc()
		return nil, ErrCacheMiss
	}

	var data []byte
	err = s.withDB(ctx, modeReadOnly, func(db *sql.DB) error {
		ok, err := tableExists(ctx, db)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCacheMiss
		}
		err = db.QueryRowContext(ctx, `SELECT data FROM feed_entries WHERE url = ?`, url).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCacheMiss
		}
		return err
	})
	if errors.Is(err, ErrCacheMiss) {
		StoreReads.WithLabelValues(backendSQLite, "miss").Inc()
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, s.fail("read", url, err)
	}

	entry, err := decodeEntry(data)
	if err != nil {
		return nil, s.fail("read", url, err)
	}

	StoreReads.WithLabelValues(backendSQLite, "found").Inc()
	return entry, nil
}

// Write replaces the entry stored under url, creating the file if needed.
func (s *SQLiteStore) Write(ctx context.Context, url string, entry *CacheEntry) error {
	if err := validateEntry(url, entry); err != nil {
		return err
	}
	data, err := encodeEntry(url, entry)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return s.fail("write", url, fmt.Errorf("create store directory: %w", err))
	}

	err = s.withDB(ctx, modeCreate, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
		_, err := db.ExecContext(ctx, upsertSQL, url, data, entry.UpdatedAt.UnixNano())
		return err
	})
	if err != nil {
		return s.fail("write", url, err)
	}

	StoreWrites.WithLabelValues(backendSQLite).Inc()
	EntrySize.WithLabelValues(backendSQLite).Observe(float64(len(data)))
	return nil
}

// Prune deletes entries last written before updatedBefore.
func (s *SQLiteStore) Prune(ctx context.Context, updatedBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.exists()
	if err != nil {
		return 0, s.fail("prune", "", err)
	}
	if !exists {
		return 0, nil
	}

	var removed int64
	err = s.withDB(ctx, modeReadWrite, func(db *sql.DB) error {
		ok, err := tableExists(ctx, db)
		if err != nil || !ok {
			return err
		}
		res, err := db.ExecContext(ctx, `DELETE FROM feed_entries WHERE updated_at < ?`, updatedBefore.UnixNano())
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, s.fail("prune", "", err)
	}

	EntriesPruned.WithLabelValues(backendSQLite).Add(float64(removed))
	return int(removed), nil
}

// Close is a no-op; the database is only open for the duration of a call.
func (s *SQLiteStore) Close() error {
	return nil
}

// withDB opens the database in the given mode, runs fn and always closes
// the handle again.
func (s *SQLiteStore) withDB(ctx context.Context, mode openMode, fn func(db *sql.DB) error) (err error) {
	db, err := sql.Open("sqlite3", s.dsn(mode))
	if err != nil {
		return fmt.Errorf("open sqlite store: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close sqlite store: %w", closeErr)
		}
	}()
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("open sqlite store: %w", err)
	}
	return fn(db)
}

// dsn returns the SQLite URI for the store file. The path is escaped so
// that '?', '#' and '%' in a file name stay part of the name.
func (s *SQLiteStore) dsn(mode openMode) string {
	q := url.Values{}
	q.Set("mode", string(mode))
	q.Set("_busy_timeout", "5000")
	if mode != modeReadOnly {
		q.Set("_sync", "FULL")
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(s.path), RawQuery: q.Encode()}
	return u.String()
}

func (s *SQLiteStore) exists() (bool, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", s.path)
	}
	return true, nil
}

func (s *SQLiteStore) fail(op, url string, err error) error {
	StoreErrors.WithLabelValues(backendSQLite, op).Inc()
	if op == "read" {
		StoreReads.WithLabelValues(backendSQLite, "error").Inc()
	}
	return &StoreError{Op: op, URL: url, Err: err}
}

func tableExists(ctx context.Context, db *sql.DB) (bool, error) {
	var name string
	err := db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, sqliteTable).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
