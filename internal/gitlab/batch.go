package gitlab

import (
	"context"
	"sync"
)

// BatchResult carries the outcome of one item in a ProcessBatch run.
type BatchResult[R any] struct {
	Value R
	Err   error
}

// ProcessBatch runs worker over items in fixed-size batches: batch N+1 does
// not start before every task of batch N finished, bounding peak concurrency
// to batchSize. Results come back in input order and one item's failure is
// isolated to its own slot, never aborting siblings.
func ProcessBatch[T, R any](
	ctx context.Context,
	items []T,
	batchSize int,
	worker func(ctx context.Context, item T) (R, error),
) []BatchResult[R] {
	if batchSize < 1 {
		batchSize = 1
	}

	results := make([]BatchResult[R], len(items))

	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				value, err := worker(ctx, items[i])
				results[i] = BatchResult[R]{Value: value, Err: err}
			}(i)
		}
		wg.Wait()
	}

	return results
}
