package diff

import (
	"cmp"
	"context"
	"iter"
)

// Ordered performs a diff operation on two sorted sequences of cmp.Ordered types.
// It uses cmp.Compare for ordering, making it convenient for built-in types like
// numbers and strings. This is a wrapper around Generic that provides the
// comparison function automatically.
//
// The sequences must provide items in ascending sorted order.
func Ordered[T cmp.Ordered](ctx context.Context, a, b iter.Seq[T], resultFunc ResultFunc[T]) (r Result, err error) {
	return Generic(ctx, a, b, cmp.Compare[T], resultFunc)
}

// Strings performs a diff operation on two sorted string sequences using
// lexicographic comparison.
func Strings(ctx context.Context, a, b iter.Seq[string], resultFunc StringResultFunc) (r Result, err error) {
	return Ordered(ctx, a, b, resultFunc)
}
