// Package stack implements the bounded stack used for both operands and call frames.
package stack

import (
	"errors"
	"fmt"
)

var (
	// ErrOverflow is returned when pushing onto a stack which already holds Limit elements.
	ErrOverflow = errors.New("stack overflow")
	// ErrUnderflow is returned when popping or peeking beyond the bottom of the stack.
	ErrUnderflow = errors.New("stack underflow")
)

// Stack is a growable sequence of T capped at a fixed number of elements.
// The zero value is not usable: see New.
type Stack[T any] struct {
	values []T
	limit  int
}

// New returns an empty stack which grows on demand up to limit elements.
// initialCapacity is clamped to limit.
func New[T any](initialCapacity, limit int) *Stack[T] {
	if initialCapacity > limit {
		initialCapacity = limit
	}
	return &Stack[T]{values: make([]T, 0, initialCapacity), limit: limit}
}

// Len returns the number of elements on the stack.
func (s *Stack[T]) Len() int {
	return len(s.values)
}

// Limit returns the maximum number of elements.
func (s *Stack[T]) Limit() int {
	return s.limit
}

// IsEmpty returns true when the stack holds no elements.
func (s *Stack[T]) IsEmpty() bool {
	return len(s.values) == 0
}

// Push appends v, or returns ErrOverflow without modifying the stack.
func (s *Stack[T]) Push(v T) error {
	if len(s.values) >= s.limit {
		return fmt.Errorf("%w: exceeded limit %d", ErrOverflow, s.limit)
	}
	s.values = append(s.values, v)
	return nil
}

// Pop removes and returns the top element.
func (s *Stack[T]) Pop() (v T, err error) {
	n := len(s.values)
	if n == 0 {
		return v, ErrUnderflow
	}
	v = s.values[n-1]
	var zero T
	s.values[n-1] = zero
	s.values = s.values[:n-1]
	return v, nil
}

// Top returns the top element without removing it.
func (s *Stack[T]) Top() (v T, err error) {
	return s.Pick(0)
}

// Pick returns the element depth positions below the top: Pick(0) is the top.
func (s *Stack[T]) Pick(depth int) (v T, err error) {
	n := len(s.values)
	if depth < 0 || depth >= n {
		return v, fmt.Errorf("%w: pick %d of %d", ErrUnderflow, depth, n)
	}
	return s.values[n-1-depth], nil
}

// PopN removes the top n elements and returns them in push order.
func (s *Stack[T]) PopN(n int) ([]T, error) {
	l := len(s.values)
	if n < 0 || n > l {
		return nil, fmt.Errorf("%w: pop %d of %d", ErrUnderflow, n, l)
	}
	ret := make([]T, n)
	copy(ret, s.values[l-n:])
	s.truncate(l - n)
	return ret, nil
}

// Truncate drops elements until the stack holds height elements.
func (s *Stack[T]) Truncate(height int) error {
	if height < 0 || height > len(s.values) {
		return fmt.Errorf("%w: truncate to %d of %d", ErrUnderflow, height, len(s.values))
	}
	s.truncate(height)
	return nil
}

func (s *Stack[T]) truncate(height int) {
	var zero T
	for i := height; i < len(s.values); i++ {
		s.values[i] = zero
	}
	s.values = s.values[:height]
}
