package sortbuf_test

import (
	"encoding/binary"
	"errors"
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/lanrat/sortbuf"
	"github.com/lanrat/sortbuf/digest"
	"github.com/lanrat/sortbuf/monitoring"
)

func TestSortFourInts(t *testing.T) {
	for _, tc := range []struct {
		dir  sortbuf.Direction
		want []int
	}{
		{sortbuf.Ascending, []int{5, 10, 17, 20}},
		{sortbuf.Descending, []int{20, 17, 10, 5}},
	} {
		t.Run(tc.dir.String(), func(t *testing.T) {
			sb, err := sortbuf.NewOrdered[int](nil)
			require.NoError(t, err)
			require.NoError(t, sb.WithInserter(func(ins *sortbuf.Inserter[int]) error {
				return ins.InsertItems(10, 20, 5, 17)
			}))
			assert.Equal(t, tc.want, drain(t, sb, tc.dir))
		})
	}
}

func TestSingleElement(t *testing.T) {
	sb, err := sortbuf.NewOrdered[float64](nil)
	require.NoError(t, err)
	require.NoError(t, sb.WithInserter(func(ins *sortbuf.Inserter[float64]) error {
		return ins.InsertItems(42.5)
	}))
	assert.Equal(t, []float64{42.5}, drain(t, sb, sortbuf.Descending))
}

func TestAllIdenticalElements(t *testing.T) {
	sb, err := sortbuf.NewOrdered[string](&sortbuf.Config{ChunkSize: 7})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, sb.WithInserter(func(ins *sortbuf.Inserter[string]) error {
			for j := 0; j < 20; j++ {
				if err := ins.InsertItems("same"); err != nil {
					return err
				}
			}
			return nil
		}))
	}
	got := drain(t, sb, sortbuf.Ascending)
	assert.Len(t, got, 60)
	for _, s := range got {
		assert.Equal(t, "same", s)
	}
}

type person struct {
	Name string
	Age  int
}

func TestCustomCompare(t *testing.T) {
	byAgeThenName := func(a, b person) int {
		if a.Age != b.Age {
			return a.Age - b.Age
		}
		return strings.Compare(a.Name, b.Name)
	}
	sb, err := sortbuf.New(byAgeThenName, nil)
	require.NoError(t, err)
	require.NoError(t, sb.WithInserter(func(ins *sortbuf.Inserter[person]) error {
		return ins.InsertItems(
			person{"Alice", 30},
			person{"Bob", 25},
			person{"Charlie", 35},
			person{"Aaron", 30},
		)
	}))
	assert.Equal(t, []person{
		{"Bob", 25}, {"Aaron", 30}, {"Alice", 30}, {"Charlie", 35},
	}, drain(t, sb, sortbuf.Ascending))
}

func TestConcurrentProducers(t *testing.T) {
	const producers, perProducer = 8, 20000
	sb, err := sortbuf.NewOrdered[uint64](&sortbuf.Config{ChunkSize: 1000})
	require.NoError(t, err)

	inserted := digest.New[uint64](binary.LittleEndian.AppendUint64)
	parts := make([]*digest.Digest[uint64], producers)

	var g errgroup.Group
	for p := 0; p < producers; p++ {
		parts[p] = digest.New[uint64](binary.LittleEndian.AppendUint64)
		g.Go(func() error {
			r := rand.New(rand.NewSource(int64(p)))
			return sb.WithInserter(func(ins *sortbuf.Inserter[uint64]) error {
				batch := make([]uint64, 0, 100)
				for i := 0; i < perProducer; i++ {
					v := r.Uint64() % 5000
					parts[p].Add(v)
					batch = append(batch, v)
					if len(batch) == cap(batch) {
						if err := ins.InsertItems(batch...); err != nil {
							return err
						}
						batch = batch[:0]
					}
				}
				return ins.InsertItems(batch...)
			})
		})
	}
	require.NoError(t, g.Wait())
	for _, part := range parts {
		inserted.Merge(part)
	}
	assert.Equal(t, producers, sb.Runs())
	assert.Equal(t, producers*perProducer, sb.Len())

	it, err := sb.IntoIter(sortbuf.Ascending)
	require.NoError(t, err)
	yielded := digest.New[uint64](binary.LittleEndian.AppendUint64)
	var prev uint64
	for v := range yielded.Tee(it.All()) {
		require.LessOrEqual(t, prev, v)
		prev = v
	}
	assert.True(t, inserted.Equal(yielded), "inserted %s, yielded %s", inserted, yielded)
}

func TestPrematureConsumption(t *testing.T) {
	sb, err := sortbuf.NewOrdered[int](nil)
	require.NoError(t, err)
	ins, err := sortbuf.NewInserter(sb)
	require.NoError(t, err)
	require.NoError(t, ins.InsertItems(2, 1))

	_, err = sb.IntoIter(sortbuf.Ascending)
	require.ErrorIs(t, err, sortbuf.ErrPrematureConsumption)
	assert.Equal(t, 1, sb.Live())

	// the buffer is untouched and can be consumed after finalizing
	require.NoError(t, ins.Finalize())
	assert.Equal(t, []int{1, 2}, drain(t, sb, sortbuf.Ascending))
}

func TestConsumedTwice(t *testing.T) {
	sb, err := sortbuf.NewOrdered[int](nil)
	require.NoError(t, err)
	_, err = sb.IntoIter(sortbuf.Ascending)
	require.NoError(t, err)

	_, err = sb.IntoIter(sortbuf.Ascending)
	assert.ErrorIs(t, err, sortbuf.ErrConsumed)
	_, err = sortbuf.NewInserter(sb)
	assert.ErrorIs(t, err, sortbuf.ErrConsumed)
	assert.ErrorIs(t, sb.WithInserter(func(*sortbuf.Inserter[int]) error { return nil }), sortbuf.ErrConsumed)
}

func TestInvalidDirection(t *testing.T) {
	sb, err := sortbuf.NewOrdered[int](nil)
	require.NoError(t, err)
	_, err = sb.IntoIter(sortbuf.Direction(5))
	require.Error(t, err)

	// still consumable
	_, err = sb.IntoIter(sortbuf.Descending)
	assert.NoError(t, err)
}

func TestNilCompare(t *testing.T) {
	_, err := sortbuf.New[int](nil, nil)
	var cfgErr *sortbuf.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "compare", cfgErr.Field)
}

func TestRegisterRefused(t *testing.T) {
	allocator := &switchable{}
	sb, err := sortbuf.NewOrdered[int](&sortbuf.Config{Allocator: allocator})
	require.NoError(t, err)
	ins, err := sortbuf.NewInserter(sb)
	require.NoError(t, err)
	require.NoError(t, ins.InsertItems(3, 2, 1))

	allocator.refusing.Store(true)
	require.ErrorIs(t, ins.Finalize(), sortbuf.ErrAllocationFailure)
	assert.False(t, ins.Finalized())
	assert.Equal(t, 3, ins.Len())
	assert.Equal(t, 1, sb.Live())
	assert.Equal(t, 0, sb.Runs())

	allocator.refusing.Store(false)
	require.NoError(t, ins.Finalize())
	assert.Equal(t, []int{1, 2, 3}, drain(t, sb, sortbuf.Ascending))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := monitoring.NewMetrics(reg, "test")
	allocator := &switchable{}
	sb, err := sortbuf.NewOrdered[int](&sortbuf.Config{Metrics: m, Allocator: allocator})
	require.NoError(t, err)

	ins, err := sortbuf.NewInserter(sb)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LiveInserters))
	require.NoError(t, ins.InsertItems(4, 3, 2, 1))

	allocator.refusing.Store(true)
	require.Error(t, ins.InsertItems(make([]int, 5000)...))
	allocator.refusing.Store(false)

	require.NoError(t, ins.Finalize())
	require.Error(t, ins.InsertItems(0))

	assert.Equal(t, 4.0, testutil.ToFloat64(m.ItemsInserted))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.BufferedItems))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InsertFailures.WithLabelValues(monitoring.ReasonAllocation)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InsertFailures.WithLabelValues(monitoring.ReasonFinalized)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LiveInserters))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsRegistered))

	drain(t, sb, sortbuf.Ascending)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ItemsYielded))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BufferedItems))

	count, err := testutil.GatherAndCount(reg, "test_finalize_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetricsEarlyClose(t *testing.T) {
	m := monitoring.NewMetrics(prometheus.NewRegistry(), "test")
	sb, err := sortbuf.NewOrdered[int](&sortbuf.Config{Metrics: m})
	require.NoError(t, err)
	require.NoError(t, sb.WithInserter(func(ins *sortbuf.Inserter[int]) error {
		return ins.InsertItems(5, 1, 4, 2, 3)
	}))

	it, err := sb.IntoIter(sortbuf.Descending)
	require.NoError(t, err)
	v, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, 5, v)
	it.Close()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ItemsYielded))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BufferedItems))
}

func TestLogging(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	allocator := &switchable{}
	sb, err := sortbuf.NewOrdered[int](&sortbuf.Config{Logger: logger, Allocator: allocator})
	require.NoError(t, err)

	ins, err := sortbuf.NewInserter(sb)
	require.NoError(t, err)
	allocator.refusing.Store(true)
	require.Error(t, ins.InsertItems(1))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "insert batch refused", hook.LastEntry().Message)
	assert.Contains(t, hook.LastEntry().Data, logrus.ErrorKey)

	allocator.refusing.Store(false)
	require.NoError(t, ins.InsertItems(1))
	require.NoError(t, ins.Finalize())
	assert.Equal(t, "registered run", hook.LastEntry().Message)
	assert.Equal(t, 1, hook.LastEntry().Data["items"])

	drain(t, sb, sortbuf.Ascending)
	assert.Equal(t, "merging runs", hook.LastEntry().Message)
}

func TestMultisetPreserved(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for round := 0; round < 20; round++ {
		chunkSize := 1 + r.Intn(50)
		sb, err := sortbuf.NewOrdered[string](&sortbuf.Config{ChunkSize: chunkSize})
		require.NoError(t, err)

		in := digest.Strings()
		var all []string
		for p := r.Intn(5); p >= 0; p-- {
			items := make([]string, r.Intn(300))
			for i := range items {
				items[i] = string(rune('a' + r.Intn(26)))
			}
			in.AddAll(slices.Values(items))
			all = append(all, items...)
			require.NoError(t, sb.WithInserter(func(ins *sortbuf.Inserter[string]) error {
				_, err := ins.InsertSeq(slices.Values(items))
				return err
			}))
		}

		dir := sortbuf.Direction(r.Intn(2))
		out := digest.Strings()
		got := drain(t, sb, dir)
		out.AddAll(slices.Values(got))
		assert.True(t, in.Equal(out), "round %d", round)

		slices.Sort(all)
		if dir == sortbuf.Descending {
			slices.Reverse(all)
		}
		if len(all) == 0 {
			assert.Empty(t, got)
		} else {
			assert.Equal(t, all, got, "round %d chunk size %d", round, chunkSize)
		}
	}
}
