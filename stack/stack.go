// Package stack implements a growth-only value stack with a movable fence.
//
// A nested invocation sets the fence at the current depth so that it can use
// the same physical stack as its caller without popping or overwriting the
// caller's entries. Entries below the fence stay readable through At, which
// is how scope lookups walk outer scopes.
//
// Storage is allocated in fixed-size chunks that are never moved, so a
// pointer obtained from Ref stays valid while the stack grows.
package stack

import (
	"github.com/deepnoodle-ai/avm/errz"
)

const chunkSize = 64

// Stack is a bounded stack of T.
type Stack[T any] struct {
	chunks [][]T
	top    int
	fence  int
	limit  int
}

// New returns an empty stack holding at most limit entries. A limit of zero
// or less means unbounded.
func New[T any](limit int) *Stack[T] {
	return &Stack[T]{limit: limit}
}

// Size returns the number of entries above the fence.
func (s *Stack[T]) Size() int {
	return s.top - s.fence
}

// TotalSize returns the number of entries including the fenced-off region.
func (s *Stack[T]) TotalSize() int {
	return s.top
}

// Fence returns the current fence.
func (s *Stack[T]) Fence() int {
	return s.fence
}

// Limit returns the configured capacity, or zero when unbounded.
func (s *Stack[T]) Limit() int {
	return s.limit
}

// SetFence moves the fence to the absolute depth n and returns the previous
// fence for restoration.
func (s *Stack[T]) SetFence(n int) (int, error) {
	if n < 0 || n > s.top {
		return s.fence, errz.StackFault("fence %d outside stack of %d", n, s.top)
	}
	prev := s.fence
	s.fence = n
	return prev, nil
}

func (s *Stack[T]) slot(i int) *T {
	return &s.chunks[i/chunkSize][i%chunkSize]
}

func (s *Stack[T]) reserve(n int) error {
	if s.limit > 0 && s.top+n > s.limit {
		return errz.StackFault("stack overflow: %d + %d exceeds limit %d", s.top, n, s.limit)
	}
	for len(s.chunks)*chunkSize < s.top+n {
		s.chunks = append(s.chunks, make([]T, chunkSize))
	}
	return nil
}

// Push adds v on top.
func (s *Stack[T]) Push(v T) error {
	if err := s.reserve(1); err != nil {
		return err
	}
	*s.slot(s.top) = v
	s.top++
	return nil
}

// Pop removes and returns the top entry. It never crosses the fence.
func (s *Stack[T]) Pop() (T, error) {
	var zero T
	if s.top <= s.fence {
		return zero, errz.StackFault("pop from empty stack segment")
	}
	s.top--
	p := s.slot(s.top)
	v := *p
	*p = zero
	return v, nil
}

// Top returns the i-th entry from the top, where 0 is the most recent.
func (s *Stack[T]) Top(i int) (T, error) {
	var zero T
	if i < 0 || i >= s.top-s.fence {
		return zero, errz.StackFault("top(%d) outside segment of %d", i, s.top-s.fence)
	}
	return *s.slot(s.top - 1 - i), nil
}

// SetTop replaces the i-th entry from the top.
func (s *Stack[T]) SetTop(i int, v T) error {
	if i < 0 || i >= s.top-s.fence {
		return errz.StackFault("top(%d) outside segment of %d", i, s.top-s.fence)
	}
	*s.slot(s.top - 1 - i) = v
	return nil
}

// Drop discards n entries from the top without crossing the fence.
func (s *Stack[T]) Drop(n int) error {
	if n < 0 || n > s.top-s.fence {
		return errz.StackFault("drop(%d) outside segment of %d", n, s.top-s.fence)
	}
	var zero T
	for i := 0; i < n; i++ {
		s.top--
		*s.slot(s.top) = zero
	}
	return nil
}

// Grow pushes n zero values.
func (s *Stack[T]) Grow(n int) error {
	if n < 0 {
		return errz.StackFault("grow(%d)", n)
	}
	if err := s.reserve(n); err != nil {
		return err
	}
	s.top += n
	return nil
}

// At returns the entry at absolute index i, which may lie below the fence.
func (s *Stack[T]) At(i int) (T, error) {
	var zero T
	if i < 0 || i >= s.top {
		return zero, errz.StackFault("at(%d) outside stack of %d", i, s.top)
	}
	return *s.slot(i), nil
}

// Ref returns a stable pointer to the entry at absolute index i.
func (s *Stack[T]) Ref(i int) (*T, error) {
	if i < 0 || i >= s.top {
		return nil, errz.StackFault("ref(%d) outside stack of %d", i, s.top)
	}
	return s.slot(i), nil
}

// Each calls fn for every entry from the bottom of the physical stack up,
// including entries below the fence.
func (s *Stack[T]) Each(fn func(i int, v T)) {
	for i := 0; i < s.top; i++ {
		fn(i, *s.slot(i))
	}
}
