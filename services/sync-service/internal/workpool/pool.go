// Package workpool runs work items in bounded, sequential concurrency groups.
//
// Items are split into groups of Options.Concurrency. All items of a group run
// in parallel and the next group starts only when the whole group finished,
// which caps outstanding requests against the remote API. After every
// PauseEvery groups the pool sleeps for Pause as a crude rate-limit backoff.
package workpool

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Options configure Run.
type Options struct {
	// Concurrency is the group size. Values below 1 mean 1.
	Concurrency int
	// PauseEvery is the number of groups between pauses; 0 disables pausing.
	PauseEvery int
	Pause      time.Duration
	// Sleep replaces the pause timer, mainly for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run calls fn for every item. An error returned by fn is treated as fatal:
// the running group is allowed to finish, no further group starts and the
// first error is returned. Per-item failures that must not stop the run
// should be handled inside fn.
func Run[T any](ctx context.Context, items []T, opts Options, fn func(ctx context.Context, item T) error) error {
	size := opts.Concurrency
	if size < 1 {
		size = 1
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	groups := 0
	for start := 0; start < len(items); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + size
		if end > len(items) {
			end = len(items)
		}

		var g errgroup.Group
		for _, item := range items[start:end] {
			item := item
			g.Go(func() error {
				return fn(ctx, item)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		groups++

		if opts.PauseEvery > 0 && opts.Pause > 0 && groups%opts.PauseEvery == 0 && end < len(items) {
			if err := sleep(ctx, opts.Pause); err != nil {
				return err
			}
		}
	}
	return nil
}

// Groups returns how many groups Run will use for n items.
func Groups(n, concurrency int) int {
	if concurrency < 1 {
		concurrency = 1
	}
	return (n + concurrency - 1) / concurrency
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
