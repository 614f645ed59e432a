package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/election-map-etl/internal/domain"
	"github.com/couchcryptid/election-map-etl/internal/observability"
)

func noDelay(attempts int) Policy {
	return Policy{Attempts: attempts}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// peakDoer records how many requests are in flight at once.
type peakDoer struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	calls    atomic.Int64
	hold     time.Duration
}

func (d *peakDoer) Do(req *http.Request) (*http.Response, error) {
	d.calls.Add(1)
	d.mu.Lock()
	d.inFlight++
	if d.inFlight > d.peak {
		d.peak = d.inFlight
	}
	d.mu.Unlock()

	time.Sleep(d.hold)

	d.mu.Lock()
	d.inFlight--
	d.mu.Unlock()

	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(`{"unit":"` + req.URL.Path + `"}`)),
	}, nil
}

// flakyDoer fails the first n requests per path.
type flakyDoer struct {
	mu       sync.Mutex
	failures int
	seen     map[string]int
}

func (d *flakyDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = make(map[string]int)
	}
	d.seen[req.URL.Path]++
	if d.seen[req.URL.Path] <= d.failures {
		return &http.Response{StatusCode: http.StatusServiceUnavailable, Body: http.NoBody}, nil
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("ok"))}, nil
}

func TestBatch_PeakConcurrency(t *testing.T) {
	for _, k := range []int{1, 3, 5} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			doer := &peakDoer{hold: 5 * time.Millisecond}
			client := NewClient("test", doer, WithMaxConcurrent(k), WithPolicy(noDelay(1)), WithLogger(discardLogger()))

			units := make([]string, 20)
			for i := range units {
				units[i] = fmt.Sprintf("s%02d", i)
			}
			got, err := Batch(context.Background(), units, func(ctx context.Context, unit string) (string, error) {
				body, err := client.Get(ctx, unit, "http://example.test/"+unit)
				return string(body), err
			})
			require.NoError(t, err)

			assert.LessOrEqual(t, doer.peak, k)
			assert.Equal(t, int64(len(units)), doer.calls.Load())
			for i, unit := range units {
				assert.Equal(t, `{"unit":"/`+unit+`"}`, got[i], "results are positional")
			}
		})
	}
}

func TestClient_RetrySucceedsOnLastAttempt(t *testing.T) {
	doer := &flakyDoer{failures: 2}
	metrics := observability.NewMetricsForTesting()
	client := NewClient("nyt2020", doer, WithPolicy(noDelay(3)), WithMetrics(metrics), WithLogger(discardLogger()))

	body, err := client.Get(context.Background(), "alabama", "http://example.test/alabama")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, 3, doer.seen["/alabama"])

	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.FetchRetries.WithLabelValues("nyt2020")), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.FetchRequests.WithLabelValues("nyt2020", "error")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.FetchRequests.WithLabelValues("nyt2020", "success")), 0)
}

func TestClient_RetryExhausted(t *testing.T) {
	doer := &flakyDoer{failures: 3}
	client := NewClient("nyt2020", doer, WithPolicy(noDelay(3)), WithLogger(discardLogger()))

	_, err := client.Get(context.Background(), "wyoming", "http://example.test/wyoming")

	var ferr *domain.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "wyoming", ferr.Unit)
	assert.Equal(t, 3, ferr.Attempts)
	assert.Contains(t, err.Error(), "wyoming")

	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusServiceUnavailable, serr.Status)
}

func TestBatch_FirstFailureCancels(t *testing.T) {
	units := []string{"ok-1", "bad", "ok-2"}
	_, err := Batch(context.Background(), units, func(ctx context.Context, unit string) (int, error) {
		if unit == "bad" {
			return 0, &domain.FetchError{Unit: unit, Attempts: 3, Err: errors.New("503")}
		}
		<-ctx.Done()
		return 0, ctx.Err()
	})

	var ferr *domain.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "bad", ferr.Unit)
}

func TestRetry_BackoffOnClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	policy := Policy{Attempts: 4, BaseDelay: 250 * time.Millisecond, MaxDelay: 400 * time.Millisecond}

	var attempts atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Retry(context.Background(), clock, policy, "ohio", func(context.Context, int) error {
			if attempts.Add(1) < 4 {
				return errors.New("try again")
			}
			return nil
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, wait := range []time.Duration{250 * time.Millisecond, 400 * time.Millisecond, 400 * time.Millisecond} {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(wait)
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("retry did not finish")
	}
	assert.Equal(t, int32(4), attempts.Load())
}

func TestRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, clockwork.NewFakeClock(), DefaultPolicy(), "iowa", func(context.Context, int) error {
		return errors.New("unreachable host")
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, nextBackoff(250*time.Millisecond, 5*time.Second))
	assert.Equal(t, 5*time.Second, nextBackoff(4*time.Second, 5*time.Second))
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second, 0))
}

func TestClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"races":[{"name":"president"}]}`))
	}))
	defer srv.Close()

	client := NewClient("nyt2024", srv.Client(), WithLogger(discardLogger()))
	var payload struct {
		Races []struct {
			Name string `json:"name"`
		} `json:"races"`
	}
	require.NoError(t, client.GetJSON(context.Background(), "AL", srv.URL, &payload))
	require.Len(t, payload.Races, 1)
	assert.Equal(t, "president", payload.Races[0].Name)
}

func TestClient_GetJSON_Malformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"races":`))
	}))
	defer srv.Close()

	client := NewClient("nyt2024", srv.Client(), WithLogger(discardLogger()))
	var payload map[string]any
	err := client.GetJSON(context.Background(), "AL", srv.URL, &payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode AL")
}

func TestClient_WithClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	doer := &flakyDoer{failures: 1}
	client := NewClient("nyt2024", doer,
		WithPolicy(Policy{Attempts: 2, BaseDelay: time.Second}),
		WithClock(clock),
		WithLogger(discardLogger()))

	done := make(chan error, 1)
	go func() {
		_, err := client.Get(context.Background(), "texas", "http://example.test/texas")
		done <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("client did not retry after the backoff")
	}
	assert.Equal(t, 2, doer.seen["/texas"])
}
