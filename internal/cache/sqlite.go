// Package cache implements the durable price-series cache: a SQLite-backed
// key-value store mapping (symbol, start, end, granularity) to a bar series,
// with time-to-live invalidation.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"galileo/internal/domain"
)

// Key identifies one cached series. The full tuple is the storage key: a
// query for a sub-range of a cached range is a miss, never a partial serve.
type Key struct {
	Symbol      string
	Start       time.Time
	End         time.Time
	Granularity domain.Granularity
}

// String renders the key in its canonical storage form.
func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s|%s",
		k.Symbol,
		k.Start.UTC().Format(time.RFC3339),
		k.End.UTC().Format(time.RFC3339),
		k.Granularity,
	)
}

const schema = `
CREATE TABLE IF NOT EXISTS bar_cache (
	cache_key   TEXT PRIMARY KEY,
	symbol      TEXT NOT NULL,
	fetched_at  INTEGER NOT NULL,
	ttl_seconds INTEGER NOT NULL,
	bars        BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bar_cache_symbol ON bar_cache(symbol);
`

// Store is a durable series cache. It is safe for concurrent use: a Put for
// a key is atomic with respect to concurrent Gets.
type Store struct {
	db  *sql.DB
	log *slog.Logger

	// now is the clock used for TTL checks; tests override it.
	now func() time.Time
}

// Open opens (or creates) the cache database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &Store{
		db:  db,
		log: slog.Default().With("component", "cache"),
		now: time.Now,
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached series for key if a fresh entry exists. The second
// return value reports a hit. An expired or corrupt entry is a miss for that
// key only; corruption never propagates as an error to the caller.
func (s *Store) Get(ctx context.Context, key Key) (*domain.Series, bool, error) {
	var (
		fetchedAt  int64
		ttlSeconds int64
		blob       []byte
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT fetched_at, ttl_seconds, bars FROM bar_cache WHERE cache_key = ?`,
		key.String(),
	)
	if err := row.Scan(&fetchedAt, &ttlSeconds, &blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading cache entry %s: %w", key, err)
	}

	age := s.now().Unix() - fetchedAt
	if age >= ttlSeconds {
		// Expired: the caller must refresh. Remove the stale row lazily.
		s.deleteKey(ctx, key)
		return nil, false, nil
	}

	var series domain.Series
	if err := json.Unmarshal(blob, &series); err != nil {
		// Corrupt entry. Treat as a miss for this key, leave others intact.
		s.log.Warn("corrupt cache entry, treating as miss", "key", key.String(), "err", err)
		s.deleteKey(ctx, key)
		return nil, false, nil
	}

	return &series, true, nil
}

// Put stores a series under key with the given TTL, replacing any previous
// entry for that key.
func (s *Store) Put(ctx context.Context, key Key, series *domain.Series, ttl time.Duration) error {
	blob, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("encoding series for %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO bar_cache (cache_key, symbol, fetched_at, ttl_seconds, bars)
		 VALUES (?, ?, ?, ?, ?)`,
		key.String(), key.Symbol, s.now().Unix(), int64(ttl.Seconds()), blob,
	)
	if err != nil {
		return fmt.Errorf("writing cache entry %s: %w", key, err)
	}
	return nil
}

// Invalidate removes all cached entries for a symbol.
func (s *Store) Invalidate(ctx context.Context, symbol string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bar_cache WHERE symbol = ?`, symbol); err != nil {
		return fmt.Errorf("invalidating %s: %w", symbol, err)
	}
	return nil
}

// InvalidateAll removes every cached entry.
func (s *Store) InvalidateAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bar_cache`); err != nil {
		return fmt.Errorf("invalidating all entries: %w", err)
	}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bar_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	return n, nil
}

func (s *Store) deleteKey(ctx context.Context, key Key) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bar_cache WHERE cache_key = ?`, key.String()); err != nil {
		s.log.Warn("deleting cache entry failed", "key", key.String(), "err", err)
	}
}
