package sortbuf

import "iter"

// Uniq returns a sequence that filters out consecutive duplicates from seq,
// keeping the first of each group of items comparing equal under compare.
// Applied to a sorted sequence such as Iterator.All, it yields every distinct
// item exactly once.
func Uniq[E any](seq iter.Seq[E], compare CompareGeneric[E]) iter.Seq[E] {
	return func(yield func(E) bool) {
		var prior E
		priorSet := false
		for d := range seq {
			if priorSet && compare(d, prior) == 0 {
				continue
			}
			priorSet = true
			prior = d
			if !yield(d) {
				return
			}
		}
	}
}
