package worker

import (
	"context"
)

// Map applies fn to every item with at most workers running at once.
// Outcomes come back in input order; an item that never ran because ctx was
// cancelled carries ctx's error.
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, item T) (R, error)) []Outcome[R] {
	outcomes := make([]Outcome[R], len(items))
	if len(items) == 0 {
		return outcomes
	}

	pool := NewPool(ctx, workers, fn)

	// Submitting from its own goroutine keeps a full queue from blocking the
	// results drain below
	go func() {
		defer pool.Close()
		for _, item := range items {
			if _, ok := pool.Submit(item); !ok {
				return
			}
		}
	}()

	seen := make([]bool, len(items))
	for o := range pool.Results() {
		outcomes[o.Index] = o
		seen[o.Index] = true
	}

	for i := range outcomes {
		if seen[i] {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		outcomes[i] = Outcome[R]{Index: i, Err: err}
	}
	return outcomes
}
