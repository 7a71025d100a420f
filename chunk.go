package sortbuf

import (
	"math"
	"slices"

	"github.com/lanrat/sortbuf/alloc"
)

// chunk is a contiguous run of items owned by a single inserter.
// Its capacity only changes through grow, which either succeeds or leaves the
// chunk exactly as it was.
type chunk[E any] struct {
	data  []E
	alloc alloc.Checker
	size  int64 // bytes per item
}

func newChunk[E any](a alloc.Checker, size int64) *chunk[E] {
	return &chunk[E]{alloc: a, size: size}
}

func (c *chunk[E]) Len() int {
	return len(c.data)
}

func (c *chunk[E]) Cap() int {
	return cap(c.data)
}

func (c *chunk[E]) spare() int {
	return cap(c.data) - len(c.data)
}

// grow makes room for additional more items after the current ones. The
// allocator is asked for the extra bytes before anything is allocated.
func (c *chunk[E]) grow(additional int) error {
	if additional <= c.spare() {
		return nil
	}
	newCap := len(c.data) + additional
	if newCap < 0 {
		return NewAllocationError("capacity overflow", math.MaxInt64, additional)
	}
	extra := int64(newCap - cap(c.data))
	if extra > math.MaxInt64/c.size {
		return NewAllocationError("size overflow", math.MaxInt64, additional)
	}
	bytes := extra * c.size
	if err := c.alloc.CheckAlloc(bytes); err != nil {
		return NewAllocationError(err, bytes, additional)
	}
	data, err := makeItems[E](len(c.data), newCap)
	if err != nil {
		release(c.alloc, bytes)
		return NewAllocationError(err, bytes, additional)
	}
	copy(data, c.data)
	c.data = data
	return nil
}

// pushWithinCapacity appends item if there is spare capacity and reports
// whether it did.
func (c *chunk[E]) pushWithinCapacity(item E) bool {
	if len(c.data) == cap(c.data) {
		return false
	}
	c.data = append(c.data, item)
	return true
}

// sort orders the chunk in place. A panicking compare function is reported as a
// ComparisonError; the chunk then holds the same items in unspecified order.
func (c *chunk[E]) sort(compare CompareGeneric[E]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewComparisonError(r, "sortChunk")
		}
	}()
	slices.SortFunc(c.data, compare)
	return nil
}

// makeItems allocates a slice, turning the runtime panic for impossible sizes
// into an error.
func makeItems[E any](length, capacity int) (data []E, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	return make([]E, length, capacity), nil
}

// release hands bytes back to allocators that account for them
func release(a alloc.Checker, bytes int64) {
	if r, ok := a.(alloc.Releaser); ok && bytes > 0 {
		r.Release(bytes)
	}
}
