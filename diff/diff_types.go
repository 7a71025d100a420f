package diff

import "fmt"

// Delta says which side of a comparison an unmatched item came from.
type Delta int

const (
	// NEW marks an item present in b but not in a.
	NEW Delta = iota // +
	// OLD marks an item present in a but not in b.
	OLD // -
)

// ResultFunc receives every item that has no match on the other side.
// A non-nil error stops the comparison and is returned to the caller.
type ResultFunc[T any] func(Delta, T) error

// StringResultFunc is a ResultFunc over lines.
type StringResultFunc = ResultFunc[string]

// CompareFunc orders two items following cmp.Compare semantics.
type CompareFunc[T any] func(a, b T) int

func (d Delta) String() string {
	switch d {
	case NEW:
		return ">"
	case OLD:
		return "<"
	default:
		return "?"
	}
}

// Result counts what a comparison saw.
type Result struct {
	ExtraA uint64 // reported as OLD
	ExtraB uint64 // reported as NEW
	TotalA uint64
	TotalB uint64
	Common uint64 // matched pairs
}

func (r *Result) String() string {
	return fmt.Sprintf("A: %d/%d\tB: %d/%d\tC: %d", r.ExtraA, r.TotalA, r.ExtraB, r.TotalB, r.Common)
}
