package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var _ Cache = &SQLiteCache{}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at INTEGER NOT NULL
)`

// SQLiteCache is a single-node Cache. Expiry is stored as unix milliseconds.
type SQLiteCache struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteCache opens (or creates) the database at path. Use ":memory:" for
// a process-local cache.
func OpenSQLiteCache(ctx context.Context, path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// every connection to :memory: is its own database
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &SQLiteCache{db: db, now: time.Now}, nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func (c *SQLiteCache) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *SQLiteCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, c.now().Add(ttl).UnixMilli())
	return err
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM cache_entries WHERE key = ? AND expires_at > ?`,
		key, c.now().UnixMilli()).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	return err
}

func (c *SQLiteCache) Take(ctx context.Context, key string) (string, error) {
	var v string
	err := c.db.QueryRowContext(ctx,
		`DELETE FROM cache_entries WHERE key = ? AND expires_at > ? RETURNING value`,
		key, c.now().UnixMilli()).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// Purge deletes expired rows and reports how many were removed.
func (c *SQLiteCache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= ?`, c.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
