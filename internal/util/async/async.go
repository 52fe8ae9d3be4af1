package async

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultPoolSize is used when NewPool is given a non-positive size.
const DefaultPoolSize = 8

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// Pool bounds the number of concurrently running functions.
// A nil *Pool is unbounded.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool returns a pool with size slots.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the number of slots, or 0 for an unbounded pool.
func (p *Pool) Size() int {
	if p == nil {
		return 0
	}
	return p.size
}

// Do runs fn once a slot is free. It returns ctx.Err() if ctx ends first.
// fn must not call back into the same pool.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	if p != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer p.sem.Release(1)
	}
	return fn(ctx)
}

// Result is the outcome of one task run by RunEach.
type Result struct {
	Name string
	Err  error
}

// RunEach executes the tasks on the pool, waits for all of them and returns
// one Result per task in input order. A failing task does not stop its
// siblings.
func RunEach(ctx context.Context, pool *Pool, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	var g errgroup.Group
	for i, task := range tasks {
		results[i].Name = task.Name
		g.Go(func() error {
			results[i].Err = pool.Do(ctx, task.Func)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Map calls fn for every input on the pool and returns the outputs in input
// order. The first error cancels the remaining calls and is returned alone;
// no partial output is returned with it.
func Map[In, Out any](ctx context.Context, pool *Pool, in []In, fn func(context.Context, In) (Out, error)) ([]Out, error) {
	out := make([]Out, len(in))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range in {
		g.Go(func() error {
			return pool.Do(gctx, func(ctx context.Context) error {
				res, err := fn(ctx, v)
				if err != nil {
					return err
				}
				out[i] = res
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// MapEach is like Map but never cancels siblings: it returns every output
// together with the error of each input, both in input order.
func MapEach[In, Out any](ctx context.Context, pool *Pool, in []In, fn func(context.Context, In) (Out, error)) ([]Out, []error) {
	out := make([]Out, len(in))
	errs := make([]error, len(in))
	var g errgroup.Group
	for i, v := range in {
		g.Go(func() error {
			errs[i] = pool.Do(ctx, func(ctx context.Context) error {
				res, err := fn(ctx, v)
				out[i] = res
				return err
			})
			return nil
		})
	}
	_ = g.Wait()
	return out, errs
}
