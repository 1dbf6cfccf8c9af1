package po

import (
	"context"
	"fmt"
)

// Matcher is a described predicate over a page object, used with
// WaitForMatch and in assertions.
type Matcher[T any] interface {
	Describe() string
	Matches(ctx context.Context, subject T) (bool, error)
}

type funcMatcher[T any] struct {
	desc string
	fn   func(ctx context.Context, subject T) (bool, error)
}

// NewMatcher builds a Matcher from a description and a predicate.
func NewMatcher[T any](fn func(ctx context.Context, subject T) (bool, error), format string, args ...any) Matcher[T] {
	return funcMatcher[T]{desc: fmt.Sprintf(format, args...), fn: fn}
}

func (m funcMatcher[T]) Describe() string { return m.desc }

func (m funcMatcher[T]) Matches(ctx context.Context, subject T) (bool, error) {
	return m.fn(ctx, subject)
}
