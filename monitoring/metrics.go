// Package monitoring exposes Prometheus metrics for sort buffers. A nil
// *Metrics is valid and records nothing.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Insert failure reasons used as label values.
const (
	ReasonAllocation = "allocation"
	ReasonFinalized  = "finalized"
)

// Metrics holds the collectors shared by the buffers configured with it.
type Metrics struct {
	ItemsInserted  prometheus.Counter
	InsertFailures *prometheus.CounterVec
	BufferedItems  prometheus.Gauge

	LiveInserters    prometheus.Gauge
	RunsRegistered   prometheus.Counter
	FinalizeDuration prometheus.Histogram

	ItemsYielded prometheus.Counter
}

// NewMetrics registers the sort buffer metrics with reg under namespace.
// Metrics are shared by every buffer configured with the returned value.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "sortbuf"
	}
	return &Metrics{
		ItemsInserted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_inserted_total",
			Help:      "Number of items accepted by inserters",
		}),
		InsertFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insert_failures_total",
			Help:      "Number of rejected insert batches",
		}, []string{"reason"}), // reason: allocation/finalized
		BufferedItems: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffered_items",
			Help:      "Number of items held by inserters and registered runs",
		}),
		LiveInserters: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_inserters",
			Help:      "Number of attached inserters that are not finalized",
		}),
		RunsRegistered: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_registered_total",
			Help:      "Number of sorted runs handed to buffers",
		}),
		FinalizeDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "finalize_duration_seconds",
			Help:      "Time spent sorting and registering an inserter's items",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		ItemsYielded: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_yielded_total",
			Help:      "Number of items produced by merge iterators",
		}),
	}
}

// Inserted records n items accepted by an inserter.
func (m *Metrics) Inserted(n int) {
	if m == nil {
		return
	}
	m.ItemsInserted.Add(float64(n))
	m.BufferedItems.Add(float64(n))
}

// InsertFailed records a rejected insert batch.
func (m *Metrics) InsertFailed(reason string) {
	if m == nil {
		return
	}
	m.InsertFailures.WithLabelValues(reason).Inc()
}

// Attached records a new live inserter.
func (m *Metrics) Attached() {
	if m == nil {
		return
	}
	m.LiveInserters.Inc()
}

// Finalized records an inserter handing over runs runs after working for d.
func (m *Metrics) Finalized(runs int, d time.Duration) {
	if m == nil {
		return
	}
	m.LiveInserters.Dec()
	m.RunsRegistered.Add(float64(runs))
	m.FinalizeDuration.Observe(d.Seconds())
}

// Yielded records n items produced by an iterator.
func (m *Metrics) Yielded(n int) {
	if m == nil {
		return
	}
	m.ItemsYielded.Add(float64(n))
	m.BufferedItems.Sub(float64(n))
}

// Dropped records n items discarded by closing an iterator early.
func (m *Metrics) Dropped(n int) {
	if m == nil || n == 0 {
		return
	}
	m.BufferedItems.Sub(float64(n))
}
