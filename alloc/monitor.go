package alloc

import (
	"fmt"
	"math"
	"runtime/debug"
	"runtime/metrics"
	"sync"

	"github.com/pbnjay/memory"
)

const (
	// DefaultMaxRatio is the share of the memory limit a Monitor lets the
	// heap grow to before refusing allocations.
	DefaultMaxRatio = 0.8

	heapObjectsMetric = "/memory/classes/heap/objects:bytes"
)

// Monitor refuses allocations that would grow the live heap beyond a share
// of the available memory. The limit is the Go memory limit when one is set
// (GOMEMLIMIT or debug.SetMemoryLimit) and the physical memory otherwise.
type Monitor struct {
	limit    int64
	maxRatio float64
	dummy    bool

	mu     sync.Mutex
	sample []metrics.Sample
	heap   func() int64
}

// NewMonitor returns a Monitor using the current memory limit and maxRatio.
// A maxRatio outside (0, 1] falls back to DefaultMaxRatio.
func NewMonitor(maxRatio float64) *Monitor {
	if maxRatio <= 0 || maxRatio > 1 {
		maxRatio = DefaultMaxRatio
	}
	m := &Monitor{
		limit:    memoryLimit(),
		maxRatio: maxRatio,
		sample:   []metrics.Sample{{Name: heapObjectsMetric}},
	}
	m.heap = m.readHeap
	return m
}

// NewDummyMonitor returns a Monitor that grants every request.
func NewDummyMonitor() *Monitor {
	return &Monitor{dummy: true}
}

// CheckAlloc returns ErrInsufficientMemory if allocating sizeInBytes more
// would exceed the monitor's threshold.
func (m *Monitor) CheckAlloc(sizeInBytes int64) error {
	if m == nil || m.dummy {
		return nil
	}
	threshold := int64(float64(m.limit) * m.maxRatio)
	heap := m.heap()
	if sizeInBytes > threshold-heap {
		return fmt.Errorf("requested %d bytes, heap at %d of %d allowed: %w",
			sizeInBytes, heap, threshold, ErrInsufficientMemory)
	}
	return nil
}

// Limit returns the memory limit the monitor works against, 0 for a dummy.
func (m *Monitor) Limit() int64 {
	if m == nil || m.dummy {
		return 0
	}
	return m.limit
}

func (m *Monitor) readHeap() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	metrics.Read(m.sample)
	if m.sample[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return int64(m.sample[0].Value.Uint64())
}

// memoryLimit prefers the soft limit of the Go runtime and falls back to the
// total physical memory.
func memoryLimit() int64 {
	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit != math.MaxInt64 {
		return limit
	}
	total := memory.TotalMemory()
	if total == 0 || total > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(total)
}
