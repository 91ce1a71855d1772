package services

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BatchError reports a single failed item by its position in the input.
type BatchError struct {
	Index int
	Err   error
}

// BatchResult carries the successful outputs in input order (failed items
// omitted) plus the failures.
type BatchResult[R any] struct {
	Results []R
	Errors  []BatchError
}

// RunBatch runs fn over items with at most limit concurrent executions.
// One item's failure never cancels the others; failures are captured per
// index instead of propagated. onProgress, when non-nil, fires after each
// completed item with the running completed count.
func RunBatch[T any, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) (R, error), onProgress func(done int)) BatchResult[R] {
	out := BatchResult[R]{}
	if len(items) == 0 {
		return out
	}
	if limit < 1 {
		limit = 1
	}

	results := make([]*R, len(items))
	errs := make([]error, len(items))

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			res, err := fn(gctx, item)
			mu.Lock()
			if err != nil {
				errs[i] = err
			} else {
				results[i] = &res
			}
			done++
			completed := done
			mu.Unlock()
			if onProgress != nil {
				onProgress(completed)
			}
			// Errors are collected, not returned: returning one would cancel
			// gctx and abort the rest of the batch.
			return nil
		})
	}
	_ = g.Wait()

	for i := range items {
		if errs[i] != nil {
			out.Errors = append(out.Errors, BatchError{Index: i, Err: errs[i]})
			continue
		}
		if results[i] != nil {
			out.Results = append(out.Results, *results[i])
		}
	}
	return out
}
