package sortbuf

import (
	"iter"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lanrat/sortbuf/monitoring"
)

// Inserter accumulates items for one producer and hands them to its SortBuf
// as a single sorted run when finalized.
//
// Inserting touches only memory owned by the inserter, so producers holding
// different inserters never contend. An Inserter must not be used from several
// goroutines at once.
//
// Every inserter must be finalized, either with Finalize or with Close
// (typically deferred), before its SortBuf can be consumed.
type Inserter[E any] struct {
	buf       *SortBuf[E]
	id        uint64
	chunks    []*chunk[E]
	chunkSize int
	n         int
	sorted    bool
	finalized bool
}

// NewInserter attaches a new, empty inserter to sb. It may be called
// concurrently from many goroutines.
func NewInserter[E any](sb *SortBuf[E]) (*Inserter[E], error) {
	id, err := sb.attach()
	if err != nil {
		return nil, err
	}
	return &Inserter[E]{
		buf:       sb,
		id:        id,
		chunkSize: sb.chunkSize,
	}, nil
}

// InsertItems inserts all items or none of them.
//
// All memory needed for the batch is reserved before the first item is copied.
// If a reservation is refused an *AllocationError is returned, the inserter
// holds exactly the items it held before the call, and items may be passed
// again later.
func (ins *Inserter[E]) InsertItems(items ...E) error {
	if ins.finalized {
		ins.buf.metrics.InsertFailed(monitoring.ReasonFinalized)
		return ErrUseAfterFinalize
	}
	if len(items) == 0 {
		return nil
	}

	paid, err := ins.buf.chargePayload(items)
	if err != nil {
		return ins.refused(err, len(items))
	}
	fresh, err := ins.reserve(len(items))
	if err != nil {
		release(ins.buf.alloc, paid)
		return ins.refused(err, len(items))
	}
	ins.commit(items, fresh)
	return nil
}

// refused records a batch of n items that could not be inserted and returns err
func (ins *Inserter[E]) refused(err error, n int) error {
	ins.buf.metrics.InsertFailed(monitoring.ReasonAllocation)
	ins.buf.logger.WithError(err).WithFields(logrus.Fields{
		"inserter": ins.id,
		"items":    n,
		"buffered": ins.n,
	}).Debug("insert batch refused")
	return err
}

// InsertSeq collects the items produced by seq and inserts them with the same
// all-or-nothing guarantee as InsertItems. If memory for collecting or
// inserting is refused, the items already taken from seq are returned together
// with the error so that none of them are lost.
func (ins *Inserter[E]) InsertSeq(seq iter.Seq[E]) ([]E, error) {
	if ins.finalized {
		ins.buf.metrics.InsertFailed(monitoring.ReasonFinalized)
		return nil, ErrUseAfterFinalize
	}

	staging := newChunk[E](ins.buf.alloc, ins.buf.size)
	dropStaging := func() {
		release(ins.buf.alloc, int64(staging.Cap())*ins.buf.size)
	}
	var err error
	for item := range seq {
		if staging.spare() == 0 {
			additional := max(min(ins.buf.config.InitialChunkSize, ins.chunkSize), staging.Cap())
			if err = staging.grow(additional); err != nil {
				dropStaging()
				return append(staging.data, item), ins.refused(err, staging.Len()+1)
			}
		}
		staging.pushWithinCapacity(item)
	}
	if staging.Len() == 0 {
		return nil, nil
	}

	if ins.adoptable(staging) {
		if _, err := ins.buf.chargePayload(staging.data); err != nil {
			dropStaging()
			return staging.data, ins.refused(err, staging.Len())
		}
		ins.chunks = append(ins.chunks, staging)
		ins.accepted(staging.Len())
		return nil, nil
	}
	err = ins.InsertItems(staging.data...)
	dropStaging()
	if err != nil {
		return staging.data, err
	}
	return nil, nil
}

// adoptable reports whether a staged batch should become a chunk of its own
// instead of being copied. Only a batch filling at least half of its capacity,
// which must be within the chunk size, qualifies, and only when the current
// chunk has no room for it.
func (ins *Inserter[E]) adoptable(staging *chunk[E]) bool {
	if staging.Cap() > ins.chunkSize || 2*staging.Len() < staging.Cap() {
		return false
	}
	cur := ins.current()
	return cur == nil || cur.spare() < staging.Len()
}

// reserve makes room for n more items. The current chunk is grown
// geometrically up to the chunk size, the rest goes into new chunks which are
// returned rather than attached, so a refusal leaves the inserter's items
// untouched.
func (ins *Inserter[E]) reserve(n int) ([]*chunk[E], error) {
	if cur := ins.current(); cur != nil {
		if cur.spare() < n && cur.Cap() < ins.chunkSize {
			target := min(ins.chunkSize, max(cur.Len()+n, 2*cur.Cap()))
			if err := cur.grow(target - cur.Len()); err != nil {
				return nil, err
			}
		}
		n -= min(n, cur.spare())
	}

	var fresh []*chunk[E]
	for n > 0 {
		capacity := min(ins.chunkSize, max(n, ins.buf.config.InitialChunkSize))
		c := newChunk[E](ins.buf.alloc, ins.buf.size)
		if err := c.grow(capacity); err != nil {
			for _, f := range fresh {
				release(ins.buf.alloc, int64(f.Cap())*ins.buf.size)
			}
			return nil, err
		}
		fresh = append(fresh, c)
		n -= min(n, capacity)
	}
	return fresh, nil
}

// commit copies items into the space set aside by reserve
func (ins *Inserter[E]) commit(items []E, fresh []*chunk[E]) {
	i := max(0, len(ins.chunks)-1)
	ins.chunks = append(ins.chunks, fresh...)
	for _, item := range items {
		for !ins.chunks[i].pushWithinCapacity(item) {
			i++
		}
	}
	ins.accepted(len(items))
}

func (ins *Inserter[E]) accepted(n int) {
	ins.n += n
	ins.sorted = false
	ins.buf.metrics.Inserted(n)
}

func (ins *Inserter[E]) current() *chunk[E] {
	if len(ins.chunks) == 0 {
		return nil
	}
	return ins.chunks[len(ins.chunks)-1]
}

// Finalize sorts the buffered items and registers them with the SortBuf as one
// run. Afterwards the inserter holds no items and rejects further use with
// ErrUseAfterFinalize. An empty inserter registers nothing.
//
// If sorting panics or the run cannot be registered, an error is returned and
// the inserter keeps its items and stays live.
func (ins *Inserter[E]) Finalize() error {
	if ins.finalized {
		return ErrUseAfterFinalize
	}
	start := time.Now()
	if !ins.sorted {
		if err := ins.sortChunks(); err != nil {
			return err
		}
		ins.sorted = true
	}
	if err := ins.buf.register(ins.id, newRun(ins.chunks, ins.n), time.Since(start)); err != nil {
		return err
	}
	ins.finalized = true
	ins.chunks = nil
	ins.n = 0
	return nil
}

// Close finalizes the inserter unless that already happened. It is meant to be
// deferred right after NewInserter.
func (ins *Inserter[E]) Close() error {
	if ins.finalized {
		return nil
	}
	return ins.Finalize()
}

// sortChunks sorts every chunk, using up to NumSortWorkers goroutines
func (ins *Inserter[E]) sortChunks() error {
	compare := ins.buf.compare
	if len(ins.chunks) == 1 {
		return ins.chunks[0].sort(compare)
	}
	var g errgroup.Group
	g.SetLimit(ins.buf.config.NumSortWorkers)
	for _, c := range ins.chunks {
		g.Go(func() error {
			return c.sort(compare)
		})
	}
	return g.Wait()
}

// SetChunkSize sets the maximum number of items of chunks allocated from now on
func (ins *Inserter[E]) SetChunkSize(size int) error {
	if size < 1 {
		return &ConfigError{Field: "ChunkSize", Value: size, Reason: "must be at least 1"}
	}
	ins.chunkSize = size
	return nil
}

// ChunkSize returns the maximum number of items per chunk
func (ins *Inserter[E]) ChunkSize() int {
	return ins.chunkSize
}

// Len returns the number of items buffered and not yet finalized
func (ins *Inserter[E]) Len() int {
	return ins.n
}

// Chunks returns the number of chunks holding the buffered items
func (ins *Inserter[E]) Chunks() int {
	return len(ins.chunks)
}

// Finalized reports whether the inserter handed its items to the SortBuf
func (ins *Inserter[E]) Finalized() bool {
	return ins.finalized
}
