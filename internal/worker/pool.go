// Package worker bounds how many CPU-bound jobs run at once.
package worker

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// Pool runs jobs with at most Size of them in flight.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// New returns a Pool of size slots. Sizes below 1 become 1.
func New(size int) *Pool {
	size = max(1, size)
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the number of slots.
func (p *Pool) Size() int { return p.size }

// Do waits for a free slot, runs fn on its own goroutine and returns its result.
//
// If ctx ends first Do returns ctx's error without waiting for fn; fn still holds
// its slot until it returns. A panic in fn is returned as an error.
func Do[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, errors.Wrap(err, "waiting for a worker")
	}

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: errors.Errorf("worker panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- outcome{v: v, err: err}
	}()

	select {
	case o := <-done:
		return o.v, o.err
	case <-ctx.Done():
		return zero, errors.Wrap(ctx.Err(), "job abandoned")
	}
}
