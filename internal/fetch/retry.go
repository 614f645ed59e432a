// Package fetch downloads source data over HTTP with bounded concurrency and
// per-unit retry.
package fetch

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/election-map-etl/internal/domain"
)

// Policy is the retry budget for one unit of work.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultPolicy tries three times, waiting 250ms then 500ms, capped at 5s.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, BaseDelay: 250 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// Retry calls fn until it succeeds or the policy is exhausted, sleeping on clock
// between attempts. Attempts are numbered from 1. A canceled context stops the
// loop with the context error; an exhausted budget returns a *domain.FetchError
// naming unit.
func Retry(ctx context.Context, clock clockwork.Clock, p Policy, unit string, fn func(ctx context.Context, attempt int) error) error {
	attempts := max(p.Attempts, 1)
	delay := p.BaseDelay

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == attempts {
			break
		}
		if !sleepWithContext(ctx, clock, delay) {
			return ctx.Err()
		}
		delay = nextBackoff(delay, p.MaxDelay)
	}
	return &domain.FetchError{Unit: unit, Attempts: attempts, Err: err}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if maxBackoff > 0 && next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
