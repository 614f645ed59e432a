// Package sqlite caches parsed source results in a local SQLite database so a
// rerun can skip the network.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"
)

// FileName is the cache database created inside the cache directory.
const FileName = "redraw.db"

//go:embed schema.sql
var schemaSQL string

// Entry is one cached parse.
type Entry struct {
	Source      string
	Year        int
	Payload     []byte
	CountyCount int
	FetchedAt   time.Time
}

// Cache stores parsed results keyed by source and year.
type Cache struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Open creates or opens <dir>/redraw.db and applies the schema.
func Open(dir string, clock clockwork.Clock) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply cache schema: %w", err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{db: db, clock: clock}, nil
}

// Close releases the database.
func (c *Cache) Close() error { return c.db.Close() }

// Get returns the cached entry for source and year. ok is false on a miss.
func (c *Cache) Get(ctx context.Context, source string, year int) (Entry, bool, error) {
	e := Entry{Source: source, Year: year}
	var fetchedAt string
	err := c.db.QueryRowContext(ctx,
		`SELECT payload, county_count, fetched_at FROM parsed_results WHERE source = ? AND year = ?`,
		source, year,
	).Scan(&e.Payload, &e.CountyCount, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("read cache %s/%d: %w", source, year, err)
	}
	e.FetchedAt, err = time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return Entry{}, false, fmt.Errorf("read cache %s/%d: fetched_at: %w", source, year, err)
	}
	return e, true, nil
}

// Lookup returns the cached payload for source and year and when it was stored.
func (c *Cache) Lookup(ctx context.Context, source string, year int) ([]byte, time.Time, bool, error) {
	e, ok, err := c.Get(ctx, source, year)
	return e.Payload, e.FetchedAt, ok, err
}

// Put stores or replaces the entry for source and year, stamped with the
// current time.
func (c *Cache) Put(ctx context.Context, source string, year int, payload []byte, countyCount int) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO parsed_results (source, year, payload, county_count, fetched_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (source, year) DO UPDATE SET
		   payload = excluded.payload,
		   county_count = excluded.county_count,
		   fetched_at = excluded.fetched_at`,
		source, year, payload, countyCount, c.clock.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write cache %s/%d: %w", source, year, err)
	}
	return nil
}

// Delete removes the entry for source and year if present.
func (c *Cache) Delete(ctx context.Context, source string, year int) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM parsed_results WHERE source = ? AND year = ?`, source, year); err != nil {
		return fmt.Errorf("delete cache %s/%d: %w", source, year, err)
	}
	return nil
}
