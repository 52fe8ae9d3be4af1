package fake

import "slices"

// store keeps resources in insertion order.
type store[T any] struct {
	ids   []string
	items map[string]*T
}

func newStore[T any]() *store[T] {
	return &store[T]{items: map[string]*T{}}
}

func (s *store[T]) put(id string, v *T) {
	if _, ok := s.items[id]; !ok {
		s.ids = append(s.ids, id)
	}
	s.items[id] = v
}

func (s *store[T]) get(id string) *T {
	return s.items[id]
}

func (s *store[T]) remove(id string) bool {
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	s.ids = slices.DeleteFunc(s.ids, func(v string) bool { return v == id })
	return true
}

func (s *store[T]) all() []*T {
	out := make([]*T, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.items[id])
	}
	return out
}
