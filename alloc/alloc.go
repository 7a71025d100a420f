// Package alloc models memory allocation as a capability that may refuse a
// request. Buffers consult a Checker before every growth so that running out
// of memory surfaces as an error instead of a fatal runtime crash.
package alloc

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	// ErrInsufficientMemory is returned by a Monitor when an allocation would
	// push the heap over its configured limit.
	ErrInsufficientMemory = errors.New("alloc: not enough memory")

	// ErrBudgetExceeded is returned by a Budget when a request does not fit
	// into the remaining budget.
	ErrBudgetExceeded = errors.New("alloc: budget exceeded")

	// ErrInjected is returned by checkers built with FailAfter.
	ErrInjected = errors.New("alloc: injected failure")
)

// Checker decides whether an allocation of sizeInBytes may proceed.
// Implementations must be safe for concurrent use.
type Checker interface {
	CheckAlloc(sizeInBytes int64) error
}

// Releaser is implemented by checkers that account for granted memory and
// want to learn when it is freed again.
type Releaser interface {
	Release(sizeInBytes int64)
}

// Func adapts an ordinary function to the Checker interface.
type Func func(sizeInBytes int64) error

// CheckAlloc calls f(sizeInBytes).
func (f Func) CheckAlloc(sizeInBytes int64) error {
	return f(sizeInBytes)
}

// FailAfter returns a Checker that grants the first n requests and refuses
// every following one with ErrInjected. It is meant for fault injection.
func FailAfter(n int64) Checker {
	var calls atomic.Int64
	return Func(func(sizeInBytes int64) error {
		if calls.Add(1) > n {
			return fmt.Errorf("request of %d bytes: %w", sizeInBytes, ErrInjected)
		}
		return nil
	})
}

// Budget is a Checker with a fixed number of bytes to hand out. Granted
// bytes stay accounted until they are given back with Release.
type Budget struct {
	limit int64
	used  atomic.Int64
}

// NewBudget returns a Budget allowing up to limit bytes to be outstanding.
func NewBudget(limit int64) *Budget {
	return &Budget{limit: limit}
}

var _ Releaser = (*Budget)(nil)

// CheckAlloc reserves sizeInBytes from the budget.
func (b *Budget) CheckAlloc(sizeInBytes int64) error {
	for {
		used := b.used.Load()
		if sizeInBytes > b.limit-used {
			return fmt.Errorf("requested %d bytes with %d of %d in use: %w",
				sizeInBytes, used, b.limit, ErrBudgetExceeded)
		}
		if b.used.CompareAndSwap(used, used+sizeInBytes) {
			return nil
		}
	}
}

// Release hands sizeInBytes back to the budget.
func (b *Budget) Release(sizeInBytes int64) {
	if b.used.Add(-sizeInBytes) < 0 {
		b.used.Store(0)
	}
}

// Used returns the number of bytes currently reserved.
func (b *Budget) Used() int64 {
	return b.used.Load()
}

// Limit returns the total size of the budget.
func (b *Budget) Limit() int64 {
	return b.limit
}
