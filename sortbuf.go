// Package sortbuf accumulates large numbers of items from concurrent producers
// and yields them in sorted order.
//
// Each producer obtains its own Inserter and fills it without any locking.
// Finalizing an inserter sorts its items once and registers them as an
// immutable run with the shared SortBuf; this is the only synchronization
// point. Once all inserters are finalized the SortBuf is consumed by IntoIter,
// which merges all runs lazily in ascending or descending order.
//
// Memory is reserved through an alloc.Checker before every growth, so a refused
// allocation is reported as an *AllocationError and never loses or corrupts
// accepted items.
package sortbuf

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/lanrat/sortbuf/alloc"
	"github.com/lanrat/sortbuf/monitoring"
)

// SortBuf owns the sorted runs contributed by its inserters until it is
// consumed by IntoIter.
type SortBuf[E any] struct {
	compare   CompareGeneric[E]
	config    Config
	size      int64 // bytes per item
	chunkSize int
	alloc     alloc.Checker
	logger    logrus.FieldLogger
	metrics   *monitoring.Metrics
	payload   func(E) int64 // bytes an item references beyond itself

	mu       sync.Mutex
	runs     []*run[E]
	runBytes int64 // granted for the runs slice
	items    int
	live     int
	nextID   uint64
	consumed bool
}

// New creates an empty SortBuf ordering items with compare.
// config can be nil to use the defaults, or only set the non-default values desired.
func New[E any](compare CompareGeneric[E], config *Config) (*SortBuf[E], error) {
	if compare == nil {
		return nil, &ConfigError{Field: "compare", Value: nil, Reason: "a comparison function is required"}
	}
	c, err := mergeConfig(config)
	if err != nil {
		return nil, err
	}
	size := itemSize[E]()
	return &SortBuf[E]{
		compare:   compare,
		config:    *c,
		size:      size,
		chunkSize: c.chunkItems(size),
		alloc:     c.Allocator,
		logger:    c.Logger,
		metrics:   c.Metrics,
	}, nil
}

// NewOrdered creates an empty SortBuf for cmp.Ordered types using cmp.Compare.
func NewOrdered[E cmp.Ordered](config *Config) (*SortBuf[E], error) {
	return New(cmp.Compare[E], config)
}

// SetPayloadSize makes the buffer charge fn(item) bytes per item to the
// allocator on top of the item itself. It is meant for items referencing memory
// of their own, such as strings or slices, and must be called before the first
// inserter is attached. The bytes are released as the iterator yields the items.
func (sb *SortBuf[E]) SetPayloadSize(fn func(E) int64) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.nextID > 0 || sb.consumed {
		return &ConfigError{Field: "PayloadSize", Value: nil, Reason: "must be set before inserters are attached"}
	}
	sb.payload = fn
	return nil
}

// chargePayload reserves the payload bytes of items and returns how many were
// granted. Nothing is reserved when no payload function is set.
func (sb *SortBuf[E]) chargePayload(items []E) (int64, error) {
	if sb.payload == nil {
		return 0, nil
	}
	var bytes int64
	for _, item := range items {
		bytes += sb.payload(item)
	}
	if bytes <= 0 {
		return 0, nil
	}
	if err := sb.alloc.CheckAlloc(bytes); err != nil {
		return 0, NewAllocationError(err, bytes, len(items))
	}
	return bytes, nil
}

// attach registers a new live inserter and returns its id
func (sb *SortBuf[E]) attach() (uint64, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.consumed {
		return 0, ErrConsumed
	}
	sb.live++
	sb.nextID++
	sb.metrics.Attached()
	return sb.nextID, nil
}

// register takes ownership of r, which may be nil for an empty inserter, and
// detaches the inserter. Only pointer bookkeeping happens under the lock.
func (sb *SortBuf[E]) register(inserter uint64, r *run[E], took time.Duration) error {
	sb.mu.Lock()
	runs := 0
	if r != nil {
		if len(sb.runs) == cap(sb.runs) {
			grow := max(4, cap(sb.runs))
			bytes := int64(grow) * int64(unsafe.Sizeof(r))
			if err := sb.alloc.CheckAlloc(bytes); err != nil {
				sb.mu.Unlock()
				err = NewAllocationError(err, bytes, r.n)
				sb.logger.WithError(err).WithField("inserter", inserter).Debug("cannot register run")
				return err
			}
			sb.runs = slices.Grow(sb.runs, grow)
			sb.runBytes += bytes
		}
		sb.runs = append(sb.runs, r)
		sb.items += r.n
		runs = 1
	}
	sb.live--
	total := len(sb.runs)
	sb.mu.Unlock()

	sb.metrics.Finalized(runs, took)
	if r != nil {
		sb.logger.WithFields(logrus.Fields{
			"inserter": inserter,
			"items":    r.n,
			"segments": len(r.segments),
			"runs":     total,
			"took":     took,
		}).Debug("registered run")
	}
	return nil
}

// IntoIter consumes the buffer and returns an iterator yielding every item in
// the given direction.
//
// All inserters must be finalized first; otherwise ErrPrematureConsumption is
// returned and the buffer is left as it was. A buffer can be consumed once,
// later calls return ErrConsumed.
func (sb *SortBuf[E]) IntoIter(dir Direction) (*Iterator[E], error) {
	if dir != Ascending && dir != Descending {
		return nil, fmt.Errorf("sortbuf: invalid direction %d", dir)
	}
	sb.mu.Lock()
	if sb.consumed {
		sb.mu.Unlock()
		return nil, ErrConsumed
	}
	if sb.live > 0 {
		live := sb.live
		sb.mu.Unlock()
		return nil, fmt.Errorf("%d inserters not finalized: %w", live, ErrPrematureConsumption)
	}
	sb.consumed = true
	runs, items, runBytes := sb.runs, sb.items, sb.runBytes
	sb.runs, sb.items, sb.runBytes = nil, 0, 0
	sb.mu.Unlock()

	// the runs slice is dropped once the iterator holds the segments
	defer release(sb.alloc, runBytes)

	sb.logger.WithFields(logrus.Fields{
		"runs":      len(runs),
		"items":     items,
		"direction": dir,
	}).Debug("merging runs")
	return newIterator(sb, runs, items, dir), nil
}

// WithInserter calls fn with a new inserter and finalizes the inserter however
// fn returns, including by panic.
func (sb *SortBuf[E]) WithInserter(fn func(*Inserter[E]) error) (err error) {
	ins, err := NewInserter(sb)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = ins.Close()
			panic(r)
		}
	}()
	if err = fn(ins); err != nil {
		if cerr := ins.Close(); cerr != nil {
			return fmt.Errorf("%w (finalize: %v)", err, cerr)
		}
		return err
	}
	return ins.Close()
}

// Len returns the number of items in registered runs
func (sb *SortBuf[E]) Len() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.items
}

// Runs returns the number of registered runs
func (sb *SortBuf[E]) Runs() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return len(sb.runs)
}

// Live returns the number of attached inserters that are not finalized
func (sb *SortBuf[E]) Live() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.live
}

// ChunkSize returns the default maximum number of items per chunk of new inserters
func (sb *SortBuf[E]) ChunkSize() int {
	return sb.chunkSize
}

// run is the sorted output of one inserter. Each segment is a sorted chunk; the
// run's total order is produced by merging its segments while iterating.
type run[E any] struct {
	segments [][]E
	n        int
}

func newRun[E any](chunks []*chunk[E], n int) *run[E] {
	if n == 0 {
		return nil
	}
	r := &run[E]{
		segments: make([][]E, 0, len(chunks)),
		n:        n,
	}
	for _, c := range chunks {
		if c.Len() > 0 {
			r.segments = append(r.segments, c.data)
		}
	}
	return r
}
