package sortbuf

import (
	"iter"

	"github.com/lanrat/sortbuf/alloc"
	"github.com/lanrat/sortbuf/monitoring"
	"github.com/lanrat/sortbuf/queue"
)

// yieldFlushInterval is the number of items after which the yielded count is
// reported to the metrics
const yieldFlushInterval = 4096

// Iterator merges the runs of a consumed SortBuf. It holds one cursor per
// sorted segment in a heap keyed by each cursor's next item, so producing an
// item costs O(log k) comparisons for k segments.
//
// Items are moved out of the runs; the iterator cannot be restarted. Items that
// compare equal are yielded in unspecified order.
type Iterator[E any] struct {
	pq        *queue.PriorityQueue[*cursor[E]]
	dir       Direction
	remaining int
	size      int64
	threshold int64
	alloc     alloc.Checker
	payload   func(E) int64
	metrics   *monitoring.Metrics
	unflushed int
}

func newIterator[E any](sb *SortBuf[E], runs []*run[E], items int, dir Direction) *Iterator[E] {
	order := sb.compare
	if dir == Descending {
		order = reverse(order)
	}

	var cursors []*cursor[E]
	for _, r := range runs {
		for _, seg := range r.segments {
			cursors = append(cursors, &cursor[E]{
				seg:      seg,
				capacity: cap(seg),
				desc:     dir == Descending,
			})
		}
	}

	threshold := int64(-1)
	if sb.config.ShrinkThreshold > 0 {
		threshold = int64(sb.config.ShrinkThreshold)
	}
	return &Iterator[E]{
		pq: queue.NewPriorityQueueFrom(func(a, b *cursor[E]) int {
			return order(a.head(), b.head())
		}, cursors),
		dir:       dir,
		remaining: items,
		size:      sb.size,
		threshold: threshold,
		alloc:     sb.alloc,
		payload:   sb.payload,
		metrics:   sb.metrics,
	}
}

// Next returns the next item and true, or the zero value and false once every
// item was returned.
func (it *Iterator[E]) Next() (E, bool) {
	if it.pq.Len() == 0 {
		it.flush()
		var zero E
		return zero, false
	}

	c := it.pq.Peek()
	item := c.take()
	if it.payload != nil {
		release(it.alloc, it.payload(item))
	}
	if c.len() > 0 {
		it.compact(c)
		it.pq.PeekUpdate()
	} else {
		it.pq.Pop()
		release(it.alloc, int64(c.capacity)*it.size)
		c.seg = nil
	}

	it.remaining--
	it.unflushed++
	if it.unflushed >= yieldFlushInterval {
		it.flush()
	}
	return item, true
}

// All returns a single-use sequence over the remaining items.
func (it *Iterator[E]) All() iter.Seq[E] {
	return func(yield func(E) bool) {
		for {
			item, ok := it.Next()
			if !ok || !yield(item) {
				return
			}
		}
	}
}

// Close drops the items not yet returned and hands their memory back to the
// allocator. Next reports no more items afterwards. Close may be called more
// than once and after the iterator was exhausted.
func (it *Iterator[E]) Close() {
	dropped := 0
	for it.pq.Len() > 0 {
		c := it.pq.Pop()
		if it.payload != nil {
			for _, item := range c.seg {
				release(it.alloc, it.payload(item))
			}
		}
		dropped += c.len()
		release(it.alloc, int64(c.capacity)*it.size)
		c.seg = nil
	}
	it.remaining = 0
	it.flush()
	it.metrics.Dropped(dropped)
}

// Len returns the number of items not yet returned
func (it *Iterator[E]) Len() int {
	return it.remaining
}

// Direction returns the order the iterator yields items in
func (it *Iterator[E]) Direction() Direction {
	return it.dir
}

func (it *Iterator[E]) flush() {
	if it.unflushed > 0 {
		it.metrics.Yielded(it.unflushed)
		it.unflushed = 0
	}
}

// compact moves the remaining items of c into a tight slice once the consumed
// part of its backing array exceeds the shrink threshold. If the allocator
// refuses, compaction is retried after another threshold worth of items.
func (it *Iterator[E]) compact(c *cursor[E]) {
	if it.threshold < 0 || int64(c.dead)*it.size < it.threshold {
		return
	}
	c.dead = 0
	bytes := int64(len(c.seg)) * it.size
	if err := it.alloc.CheckAlloc(bytes); err != nil {
		return
	}
	seg, err := makeItems[E](len(c.seg), len(c.seg))
	if err != nil {
		release(it.alloc, bytes)
		return
	}
	copy(seg, c.seg)
	release(it.alloc, int64(c.capacity)*it.size)
	c.seg = seg
	c.capacity = len(seg)
}

// cursor reads one sorted segment from the front, or from the back when
// iterating in descending order.
type cursor[E any] struct {
	seg      []E
	capacity int // items allocated for the backing array of seg
	dead     int // items taken since the last compaction
	desc     bool
}

func (c *cursor[E]) len() int {
	return len(c.seg)
}

func (c *cursor[E]) head() E {
	if c.desc {
		return c.seg[len(c.seg)-1]
	}
	return c.seg[0]
}

// take removes the head, clearing its slot so the item is no longer referenced
// by the segment.
func (c *cursor[E]) take() E {
	var zero E
	var item E
	if c.desc {
		last := len(c.seg) - 1
		item = c.seg[last]
		c.seg[last] = zero
		c.seg = c.seg[:last]
	} else {
		item = c.seg[0]
		c.seg[0] = zero
		c.seg = c.seg[1:]
	}
	c.dead++
	return item
}
