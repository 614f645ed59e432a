package fetch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Batch runs fn once per unit, each in its own goroutine, and returns the results
// in unit order. Concurrency is bounded by whatever fn acquires (normally a
// Client's semaphore). The first error cancels the remaining work and is returned;
// there are no partial results.
func Batch[T any](ctx context.Context, units []string, fn func(ctx context.Context, unit string) (T, error)) ([]T, error) {
	results := make([]T, len(units))
	g, ctx := errgroup.WithContext(ctx)
	for i, unit := range units {
		g.Go(func() error {
			v, err := fn(ctx, unit)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
