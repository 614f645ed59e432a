package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGet(t *testing.T) {
	dir := t.TempDir()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 11, 6, 12, 0, 0, 0, time.UTC))
	cache, err := Open(dir, clock)
	require.NoError(t, err)
	defer cache.Close()
	assert.FileExists(t, filepath.Join(dir, FileName))

	ctx := context.Background()
	_, ok, err := cache.Get(ctx, "nyt2020", 2020)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put(ctx, "nyt2020", 2020, []byte(`[{"fips":"01001"}]`), 1))
	e, ok, err := cache.Get(ctx, "nyt2020", 2020)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"fips":"01001"}]`, string(e.Payload))
	assert.Equal(t, 1, e.CountyCount)
	assert.True(t, e.FetchedAt.Equal(clock.Now()))

	clock.Advance(time.Hour)
	require.NoError(t, cache.Put(ctx, "nyt2020", 2020, []byte(`[]`), 0))
	e, ok, err = cache.Get(ctx, "nyt2020", 2020)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[]", string(e.Payload))
	assert.Equal(t, 0, e.CountyCount)
	assert.True(t, e.FetchedAt.Equal(clock.Now()))

	_, ok, err = cache.Get(ctx, "nyt2020", 2016)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Delete(ctx, "nyt2020", 2020))
	_, ok, err = cache.Get(ctx, "nyt2020", 2020)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_Reopen(t *testing.T) {
	dir := t.TempDir()
	cache, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, cache.Put(context.Background(), "mit", 2008, []byte(`[]`), 0))
	require.NoError(t, cache.Close())

	cache, err = Open(dir, nil)
	require.NoError(t, err)
	defer cache.Close()
	_, ok, err := cache.Get(context.Background(), "mit", 2008)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCache_Lookup(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache, err := Open(t.TempDir(), clock)
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	payload, _, ok, err := cache.Lookup(ctx, "townhall", 2016)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, payload)

	require.NoError(t, cache.Put(ctx, "townhall", 2016, []byte(`[{"fips":"48001"}]`), 1))
	payload, fetchedAt, ok, err := cache.Lookup(ctx, "townhall", 2016)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `[{"fips":"48001"}]`, string(payload))
	assert.True(t, fetchedAt.Equal(clock.Now()))
}
