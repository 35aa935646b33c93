package concurrent

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers resolves a worker count: values below one mean GOMAXPROCS.
func Workers(n int) int {
	if n < 1 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// ParallelFor calls action for every index in [0, n) using at most workers
// goroutines. It waits for all calls to finish and returns the first error.
// The context passed to action is cancelled once any call fails.
func ParallelFor(ctx context.Context, n, workers int, action func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}

	workers = Workers(workers)
	if workers == 1 || n == 1 {
		for i := 0; i < n; i++ {
			if err := action(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for i := 0; i < n; i++ {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return action(groupCtx, i)
		})
	}

	return group.Wait()
}

// ParallelMap applies mapFn to each element in parallel. Results keep the
// order of the input regardless of scheduling.
func ParallelMap[T any, R any](ctx context.Context, in []T, workers int, mapFn func(T) R) ([]R, error) {
	out := make([]R, len(in))
	err := ParallelFor(ctx, len(in), workers, func(_ context.Context, i int) error {
		out[i] = mapFn(in[i])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Batch splits n indices into contiguous chunks of at most batchSize and
// processes each chunk in its own goroutine.
func Batch(ctx context.Context, n, batchSize, workers int, action func(from, to int) error) error {
	if batchSize < 1 {
		batchSize = 1
	}
	chunks := (n + batchSize - 1) / batchSize
	return ParallelFor(ctx, chunks, workers, func(_ context.Context, c int) error {
		from := c * batchSize
		return action(from, min(from+batchSize, n))
	})
}
