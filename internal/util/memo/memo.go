// Package memo provides memoized lookup suppliers.
//
// A Supplier loads a value once, shares concurrent loads through a
// singleflight group and serves the cached value until it expires.
// Failed loads are not cached.
package memo

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Supplier memoizes the result of a load function.
type Supplier[T any] struct {
	load func(context.Context) (T, error)
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	value   T
	loaded  bool
	expires time.Time

	group singleflight.Group
}

// NewSupplier returns a supplier around load. A ttl of zero never expires.
func NewSupplier[T any](ttl time.Duration, load func(context.Context) (T, error)) *Supplier[T] {
	return &Supplier[T]{load: load, ttl: ttl, now: time.Now}
}

// Get returns the cached value, loading it if absent or expired.
func (s *Supplier[T]) Get(ctx context.Context) (T, error) {
	s.mu.Lock()
	if s.loaded && (s.ttl == 0 || s.now().Before(s.expires)) {
		v := s.value
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do("load", func() (any, error) {
		v, err := s.load(ctx)
		if err != nil {
			return v, err
		}
		s.mu.Lock()
		s.value, s.loaded, s.expires = v, true, s.now().Add(s.ttl)
		s.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops the cached value.
func (s *Supplier[T]) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.value, s.loaded = zero, false
}
