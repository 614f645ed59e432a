package observability

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLoggerTo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "info", "json")
	logger.Debug("hidden")
	logger.Info("fetched", "source", "nyt2020", "state", "AL")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"source":"nyt2020"`)

	buf.Reset()
	NewLoggerTo(&buf, "debug", "text").Debug("shown", "attempt", 2)
	assert.Contains(t, buf.String(), "attempt=2")
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetricsForTesting()
	m.FetchRequests.WithLabelValues("nyt2020", "success").Add(51)
	m.CacheLookups.WithLabelValues("miss").Inc()
	m.CoverageMismatches.Set(0)

	assert.InDelta(t, 51.0, testutil.ToFloat64(m.FetchRequests.WithLabelValues("nyt2020", "success")), 0)

	path := filepath.Join(t.TempDir(), "redraw.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `redraw_fetch_requests_total{outcome="success",source="nyt2020"} 51`)
	assert.Contains(t, string(data), "redraw_cache_lookups_total")

	// A second set of metrics must not collide with the first.
	assert.NotPanics(t, func() { NewMetricsForTesting() })
}

func TestMetrics_Gatherer(t *testing.T) {
	m := NewMetricsForTesting()
	m.RowsPublished.Add(3)

	n, err := testutil.GatherAndCount(m.Gatherer(), "redraw_rows_published_total", "redraw_coverage_mismatches")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
