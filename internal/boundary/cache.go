package boundary

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// CacheEntry is one cached boundary payload keyed by (ISO3, admin level).
// Entries are created on first fetch, read thereafter, and never auto-expire;
// invalidation is manual.
type CacheEntry struct {
	ISO3       string
	AdminLevel string
	SourceURL  string
	Payload    []byte
	Size       int64
	FetchedAt  time.Time
}

// Cache is the persistent on-disk boundary store, backed by SQLite.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (creating if needed) the boundary cache under dir.
func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "cache: create dir %s", dir)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "boundaries.db"))
	if err != nil {
		return nil, eris.Wrap(err, "cache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}
	return &Cache{db: db}, nil
}

const cacheMigration = `
CREATE TABLE IF NOT EXISTS boundary_cache (
	iso3        TEXT NOT NULL,
	admin_level TEXT NOT NULL,
	source_url  TEXT NOT NULL DEFAULT '',
	payload     BLOB NOT NULL,
	fetched_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (iso3, admin_level)
);
`

// Migrate creates the cache schema.
func (c *Cache) Migrate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, cacheMigration)
	return eris.Wrap(err, "cache: migrate")
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the entry for (iso3, adminLevel), or nil when absent.
func (c *Cache) Get(ctx context.Context, iso3, adminLevel string) (*CacheEntry, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT iso3, admin_level, source_url, payload, fetched_at
		 FROM boundary_cache WHERE iso3 = ? AND admin_level = ?`,
		iso3, adminLevel,
	)

	var e CacheEntry
	err := row.Scan(&e.ISO3, &e.AdminLevel, &e.SourceURL, &e.Payload, &e.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "cache: get %s/%s", iso3, adminLevel)
	}
	return &e, nil
}

// Put inserts or overwrites the entry for its key. Overwriting with the same
// payload is idempotent, so racing first-time fetches are safe.
func (c *Cache) Put(ctx context.Context, e *CacheEntry) error {
	fetchedAt := e.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO boundary_cache (iso3, admin_level, source_url, payload, fetched_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (iso3, admin_level) DO UPDATE SET
		   source_url = excluded.source_url,
		   payload = excluded.payload,
		   fetched_at = excluded.fetched_at`,
		e.ISO3, e.AdminLevel, e.SourceURL, e.Payload, fetchedAt,
	)
	return eris.Wrapf(err, "cache: put %s/%s", e.ISO3, e.AdminLevel)
}

// Delete removes one entry; a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, iso3, adminLevel string) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM boundary_cache WHERE iso3 = ? AND admin_level = ?`,
		iso3, adminLevel,
	)
	return eris.Wrapf(err, "cache: delete %s/%s", iso3, adminLevel)
}

// Clear removes every entry.
func (c *Cache) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM boundary_cache`)
	return eris.Wrap(err, "cache: clear")
}

// List returns all entries without payloads, newest first.
func (c *Cache) List(ctx context.Context) ([]CacheEntry, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT iso3, admin_level, source_url, length(payload), fetched_at
		 FROM boundary_cache ORDER BY fetched_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "cache: list")
	}
	defer rows.Close() //nolint:errcheck

	var entries []CacheEntry
	for rows.Next() {
		var e CacheEntry
		if err := rows.Scan(&e.ISO3, &e.AdminLevel, &e.SourceURL, &e.Size, &e.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "cache: scan entry")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "cache: iterate entries")
	}
	return entries, nil
}
