package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/election-map-etl/internal/domain"
	"github.com/couchcryptid/election-map-etl/internal/observability"
)

// ResultCache stores parsed source results as JSON keyed by source and year.
type ResultCache interface {
	Lookup(ctx context.Context, source string, year int) ([]byte, time.Time, bool, error)
	Put(ctx context.Context, source string, year int, payload []byte, countyCount int) error
	Delete(ctx context.Context, source string, year int) error
}

// CachedSource serves a source's parsed results from a ResultCache, fetching
// and storing them on a miss. With force set the cached entry is dropped before
// fetching, so a failed refresh leaves nothing stale behind.
type CachedSource[V domain.Votes[V]] struct {
	source  VoteSource[V]
	cache   ResultCache
	force   bool
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCachedSource wraps source with cache.
func NewCachedSource[V domain.Votes[V]](source VoteSource[V], cache ResultCache, force bool, logger *slog.Logger, metrics *observability.Metrics) *CachedSource[V] {
	return &CachedSource[V]{source: source, cache: cache, force: force, logger: logger, metrics: metrics}
}

func (c *CachedSource[V]) Name() string { return c.source.Name() }

func (c *CachedSource[V]) Year() int { return c.source.Year() }

// Fetch returns cached results when present, otherwise fetches and caches them.
// An unreadable cache entry is treated as a miss.
func (c *CachedSource[V]) Fetch(ctx context.Context, names *domain.CountyNames) ([]domain.CountyResult[V], error) {
	name, year := c.source.Name(), c.source.Year()

	if c.force {
		c.metrics.CacheLookups.WithLabelValues("bypass").Inc()
		if err := c.cache.Delete(ctx, name, year); err != nil {
			return nil, err
		}
	} else {
		payload, fetchedAt, ok, err := c.cache.Lookup(ctx, name, year)
		if err != nil {
			return nil, err
		}
		if ok {
			var results []domain.CountyResult[V]
			err := json.Unmarshal(payload, &results)
			if err == nil {
				c.metrics.CacheLookups.WithLabelValues("hit").Inc()
				c.logger.Info("using cached results", "source", name, "year", year,
					"counties", len(results), "fetched_at", fetchedAt.Format(time.RFC3339))
				return results, nil
			}
			c.logger.Warn("discarding unreadable cache entry", "source", name, "year", year, "error", err)
		}
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	results, err := c.source.Fetch(ctx, names)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("encode %s results: %w", name, err)
	}
	if err := c.cache.Put(ctx, name, year, payload, len(results)); err != nil {
		return nil, err
	}
	return results, nil
}
