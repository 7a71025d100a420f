package sortbuf

import "unsafe"

// CompareGeneric is a function type for comparing two items of type E.
// It must implement a strict weak ordering: reflexivity, antisymmetry, and transitivity.
// Returns a negative integer if a should be ordered before b, zero if they are equal,
// and a positive integer if a should be ordered after b in ascending output.
// This follows the same semantics as cmp.Compare and can be implemented using cmp.Compare[T] for ordered types.
type CompareGeneric[E any] func(a, b E) int

// Direction selects the order in which an Iterator yields items.
type Direction int

const (
	// Ascending yields the smallest item first.
	Ascending Direction = iota
	// Descending yields the largest item first.
	Descending
)

func (d Direction) String() string {
	switch d {
	case Ascending:
		return "ascending"
	case Descending:
		return "descending"
	default:
		return "unknown"
	}
}

// reverse returns compare with its arguments swapped
func reverse[E any](compare CompareGeneric[E]) CompareGeneric[E] {
	return func(a, b E) int {
		return compare(b, a)
	}
}

// itemSize is the number of bytes one E occupies in a chunk
func itemSize[E any]() int64 {
	var zero E
	if s := int64(unsafe.Sizeof(zero)); s > 0 {
		return s
	}
	return 1
}
