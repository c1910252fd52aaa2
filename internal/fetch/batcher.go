package fetch

import (
	"context"
	"sync"
	"time"
)

// Batch runs fn over items in consecutive chunks of batchSize. Within a chunk
// every fetch is issued concurrently; between chunks (but not after the last)
// the batcher sleeps for delay to respect RPC request quotas.
//
// Results are position-matched to the input: results[i] always corresponds to
// items[i] regardless of completion order. A failed fetch leaves the zero
// value of R in its slot rather than aborting the chunk; callers must
// tolerate holes.
func Batch[T, R any](ctx context.Context, items []T, batchSize int, delay time.Duration, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	if batchSize <= 0 {
		batchSize = len(items)
	}

	results := make([]R, len(items))
	for start := 0; start < len(items); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				r, err := fn(ctx, items[i])
				if err != nil {
					return // leave the hole
				}
				results[i] = r
			}(i)
		}
		wg.Wait()

		if end < len(items) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return results, nil
}

// All runs fn over items with unbounded concurrency. It is Batch with a
// single chunk and no delay, kept as its own name because the donation path
// deliberately skips throttling.
func All[T, R any](ctx context.Context, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	return Batch(ctx, items, len(items), 0, fn)
}
