package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/semaphore"

	"github.com/couchcryptid/election-map-etl/internal/observability"
)

// DefaultMaxConcurrent bounds in-flight requests to one host.
const DefaultMaxConcurrent = 3

const userAgent = "redraw-election-map/1.0"

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches URLs with retry. Every attempt holds one slot of a shared
// semaphore, so at most MaxConcurrent requests are in flight regardless of how
// many goroutines call Get.
type Client struct {
	source  string
	doer    Doer
	sem     *semaphore.Weighted
	policy  Policy
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithPolicy sets the retry policy.
func WithPolicy(p Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithMaxConcurrent sets the number of simultaneous requests.
func WithMaxConcurrent(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithClock sets the clock used for backoff sleeps.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records request outcomes, retries and latency.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient returns a Client labelled with source for logs and metrics.
func NewClient(source string, doer Doer, opts ...Option) *Client {
	c := &Client{
		source: source,
		doer:   doer,
		sem:    semaphore.NewWeighted(DefaultMaxConcurrent),
		policy: DefaultPolicy(),
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is a non-2xx response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Status)
}

// Get fetches url, retrying failed attempts under the client's policy. The body of
// the first successful response is returned.
func (c *Client) Get(ctx context.Context, unit, url string) ([]byte, error) {
	var body []byte
	err := Retry(ctx, c.clock, c.policy, unit, func(ctx context.Context, attempt int) error {
		b, err := c.attempt(ctx, url)
		if err != nil {
			c.logger.Warn("fetch attempt failed",
				"source", c.source, "unit", unit, "attempt", attempt, "error", err)
			if c.metrics != nil && attempt < c.policy.Attempts {
				c.metrics.FetchRetries.WithLabelValues(c.source).Inc()
			}
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("fetched", "source", c.source, "unit", unit, "bytes", len(body))
	return body, nil
}

// GetJSON fetches url and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, unit, url string, v any) error {
	body, err := c.Get(ctx, unit, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", unit, err)
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, url string) ([]byte, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	start := time.Now()
	body, err := c.do(ctx, url)
	if c.metrics != nil {
		c.metrics.FetchDuration.WithLabelValues(c.source).Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		c.metrics.FetchRequests.WithLabelValues(c.source, outcome).Inc()
	}
	return body, err
}

func (c *Client) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: url, Status: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}
