package diff

import (
	"context"
	"fmt"
	"iter"
)

// differ holds the state for performing a diff between two sorted sequences
// of type T. It manages the comparison logic and result reporting through
// callback functions.
type differ[T any] struct {
	ctx        context.Context
	nextA      func() (T, bool)
	nextB      func() (T, bool)
	resultFunc ResultFunc[T]
	compare    CompareFunc[T]
}

// Generic performs a diff operation on two sorted sequences of any type T.
// It compares items from both sequences using the provided comparison function and calls
// resultFunc for each item that exists in only one sequence (differences).
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - a, b: Sorted sequences to compare (MUST be pre-sorted)
//   - compareFunc: Function that returns <0, 0, or >0 for ordering comparison
//   - resultFunc: Callback function called for each difference found
//
// Returns statistical information about the comparison and any errors encountered.
// The function assumes both input sequences provide items in sorted order according
// to the comparison function. This assumption is not validated for performance reasons.
func Generic[T any](ctx context.Context, a, b iter.Seq[T], compareFunc CompareFunc[T], resultFunc ResultFunc[T]) (r Result, err error) {
	if ctx == nil || a == nil || b == nil || compareFunc == nil || resultFunc == nil {
		return Result{}, fmt.Errorf("arguments must not be nil")
	}

	nextA, stopA := iter.Pull(a)
	defer stopA()
	nextB, stopB := iter.Pull(b)
	defer stopB()

	d := differ[T]{
		ctx:        ctx,
		nextA:      nextA,
		nextB:      nextB,
		resultFunc: resultFunc,
		compare:    compareFunc,
	}
	return d.diff()
}

func (d *differ[T]) diff() (r Result, err error) {
	// get first sets of values
	dataA, okA := d.nextA()
	dataB, okB := d.nextB()
	for okA && okB {
		if err = d.ctx.Err(); err != nil {
			return
		}
		c := d.compare(dataA, dataB)
		if c > 0 {
			r.TotalB++
			r.ExtraB++
			if err = d.resultFunc(NEW, dataB); err != nil {
				return
			}
			dataB, okB = d.nextB()
		} else if c < 0 {
			r.TotalA++
			r.ExtraA++
			if err = d.resultFunc(OLD, dataA); err != nil {
				return
			}
			dataA, okA = d.nextA()
		} else {
			// common
			r.Common++
			r.TotalA++
			r.TotalB++
			dataA, okA = d.nextA()
			dataB, okB = d.nextB()
		}
	}
	// if only A has data left
	for okA {
		if err = d.ctx.Err(); err != nil {
			return
		}
		r.TotalA++
		r.ExtraA++
		if err = d.resultFunc(OLD, dataA); err != nil {
			return
		}
		dataA, okA = d.nextA()
	}
	// if only B has data left
	for okB {
		if err = d.ctx.Err(); err != nil {
			return
		}
		r.TotalB++
		r.ExtraB++
		if err = d.resultFunc(NEW, dataB); err != nil {
			return
		}
		dataB, okB = d.nextB()
	}
	return
}

// PrintDiff is a utility function that can be used as a ResultFunc to print
// differences to stdout. It formats each difference with the Delta symbol
// (< for OLD, > for NEW) followed by the item value.
func PrintDiff[T any](d Delta, s T) error {
	_, err := fmt.Printf("%s %v\n", d, s)
	return err
}
