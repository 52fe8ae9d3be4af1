package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/util/async"
)

// maxPages guards Drain against providers that never stop paginating.
const maxPages = 10000

// ListFunc fetches one page starting at marker.
type ListFunc[T any] func(ctx context.Context, marker string) (provider.Page[T], error)

// Drain follows page markers until the listing is exhausted.
func Drain[T any](ctx context.Context, list ListFunc[T]) ([]T, error) {
	var (
		all    []T
		marker string
		seen   = map[string]bool{}
	)
	for range maxPages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := list(ctx, marker)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if page.Next == "" {
			return all, nil
		}
		if seen[page.Next] {
			return nil, fmt.Errorf("pagination loop at marker %q", page.Next)
		}
		seen[page.Next] = true
		marker = page.Next
	}
	return nil, fmt.Errorf("pagination exceeded %d pages", maxPages)
}

// FanOut calls fetch once per scope on pool and concatenates the results in
// scope order. The first failing scope fails the whole listing; no partial
// result is returned.
//
// fetch must not submit work to pool itself.
func FanOut[S, T any](ctx context.Context, pool *async.Pool, scopes []S, fetch func(context.Context, S) ([]T, error)) ([]T, error) {
	parts, err := async.Map(ctx, pool, scopes, fetch)
	if err != nil {
		return nil, err
	}
	return flatten(parts), nil
}

// ScopeError is the failure of one scope of a best-effort fan-out.
type ScopeError[S any] struct {
	Scope S
	Err   error
}

func (e ScopeError[S]) Error() string {
	return fmt.Sprintf("scope %v: %v", e.Scope, e.Err)
}

func (e ScopeError[S]) Unwrap() error {
	return e.Err
}

// FanOutBestEffort is FanOut without the all-or-nothing join: every scope
// runs to completion, items of the successful scopes are returned together
// with one ScopeError per failed scope.
func FanOutBestEffort[S, T any](ctx context.Context, pool *async.Pool, scopes []S, fetch func(context.Context, S) ([]T, error)) ([]T, []ScopeError[S]) {
	parts, errs := async.MapEach(ctx, pool, scopes, fetch)
	var (
		items  []T
		failed []ScopeError[S]
	)
	for i, part := range parts {
		if errs[i] != nil {
			failed = append(failed, ScopeError[S]{Scope: scopes[i], Err: errs[i]})
			continue
		}
		items = append(items, part...)
	}
	return items, failed
}

// JoinScopeErrors folds the failures of a best-effort fan-out into one error.
func JoinScopeErrors[S any](failed []ScopeError[S]) error {
	errs := make([]error, len(failed))
	for i, f := range failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// FanOutNested lists the children of every parent, then the leaves of every
// child, both stages on pool. Each stage is all-or-nothing.
func FanOutNested[P, C, T any](
	ctx context.Context,
	pool *async.Pool,
	parents []P,
	children func(context.Context, P) ([]C, error),
	leaves func(context.Context, C) ([]T, error),
) ([]T, error) {
	kids, err := FanOut(ctx, pool, parents, children)
	if err != nil {
		return nil, err
	}
	return FanOut(ctx, pool, kids, leaves)
}

func flatten[T any](parts [][]T) []T {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]T, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
