package sortbuf_test

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanrat/sortbuf"
	"github.com/lanrat/sortbuf/alloc"
)

func TestMergeRandomRuns(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for _, dir := range []sortbuf.Direction{sortbuf.Ascending, sortbuf.Descending} {
		sb, err := sortbuf.NewOrdered[int](&sortbuf.Config{ChunkSize: 7})
		require.NoError(t, err)
		var all []int
		for p := 0; p < 6; p++ {
			items := randomInts(r, 100+r.Intn(400))
			all = append(all, items...)
			require.NoError(t, sb.WithInserter(func(ins *sortbuf.Inserter[int]) error {
				return ins.InsertItems(items...)
			}))
		}

		want := slices.Sorted(slices.Values(all))
		if dir == sortbuf.Descending {
			slices.Reverse(want)
		}
		assert.Equal(t, want, drain(t, sb, dir), dir.String())
	}
}

func TestIteratorLen(t *testing.T) {
	sb, err := sortbuf.NewOrdered[int](nil)
	require.NoError(t, err)
	require.NoError(t, sb.WithInserter(func(ins *sortbuf.Inserter[int]) error {
		return ins.InsertItems(3, 1, 2)
	}))
	it, err := sb.IntoIter(sortbuf.Descending)
	require.NoError(t, err)
	assert.Equal(t, sortbuf.Descending, it.Direction())

	for want := 3; want > 0; want-- {
		assert.Equal(t, want, it.Len())
		v, ok := it.Next()
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
	assert.Equal(t, 0, it.Len())
	_, ok := it.Next()
	assert.False(t, ok)
	_, ok = it.Next()
	assert.False(t, ok)
}

func TestIteratorAllBreak(t *testing.T) {
	sb, err := sortbuf.NewOrdered[int](nil)
	require.NoError(t, err)
	require.NoError(t, sb.WithInserter(func(ins *sortbuf.Inserter[int]) error {
		return ins.InsertItems(5, 4, 3, 2, 1)
	}))
	it, err := sb.IntoIter(sortbuf.Ascending)
	require.NoError(t, err)

	var first []int
	for v := range it.All() {
		first = append(first, v)
		if v == 2 {
			break
		}
	}
	assert.Equal(t, []int{1, 2}, first)
	assert.Equal(t, []int{3, 4, 5}, slices.Collect(it.All()))
}

func TestIteratorCompaction(t *testing.T) {
	budget := alloc.NewBudget(1 << 20)
	sb, err := sortbuf.NewOrdered[int64](&sortbuf.Config{
		InitialChunkSize: 1,
		ShrinkThreshold:  8 * 8,
		Allocator:        budget,
	})
	require.NoError(t, err)
	items := make([]int64, 100)
	for i := range items {
		items[i] = int64(len(items) - i)
	}
	require.NoError(t, sb.WithInserter(func(ins *sortbuf.Inserter[int64]) error {
		return ins.InsertItems(items...)
	}))

	it, err := sb.IntoIter(sortbuf.Ascending)
	require.NoError(t, err)
	assert.Equal(t, int64(100*8), budget.Used())

	for i := 1; i <= 50; i++ {
		v, ok := it.Next()
		require.True(t, ok)
		require.Equal(t, int64(i), v)
	}
	// compacted after 48 items down to the remaining 52
	assert.Equal(t, int64(52*8), budget.Used())

	for i := 51; i <= 100; i++ {
		v, ok := it.Next()
		require.True(t, ok)
		require.Equal(t, int64(i), v)
	}
	assert.Zero(t, budget.Used())
}

func TestIteratorCompactionDisabled(t *testing.T) {
	budget := alloc.NewBudget(1 << 20)
	sb, err := sortbuf.NewOrdered[int64](&sortbuf.Config{
		InitialChunkSize: 1,
		ShrinkThreshold:  -1,
		Allocator:        budget,
	})
	require.NoError(t, err)
	require.NoError(t, sb.WithInserter(func(ins *sortbuf.Inserter[int64]) error {
		return ins.InsertItems(make([]int64, 100)...)
	}))
	it, err := sb.IntoIter(sortbuf.Descending)
	require.NoError(t, err)
	for i := 0; i < 99; i++ {
		_, ok := it.Next()
		require.True(t, ok)
	}
	assert.Equal(t, int64(100*8), budget.Used())
	_, ok := it.Next()
	require.True(t, ok)
	assert.Zero(t, budget.Used())
}

func TestIteratorCompactionRefused(t *testing.T) {
	budget := alloc.NewBudget(100 * 8)
	sb, err := sortbuf.NewOrdered[int64](&sortbuf.Config{
		InitialChunkSize: 1,
		ShrinkThreshold:  8 * 8,
		Allocator:        budget,
	})
	require.NoError(t, err)
	require.NoError(t, sb.WithInserter(func(ins *sortbuf.Inserter[int64]) error {
		return ins.InsertItems(make([]int64, 70)...)
	}))
	it, err := sb.IntoIter(sortbuf.Ascending)
	require.NoError(t, err)

	// there is no room for a copy until enough was consumed
	n := 0
	for range it.All() {
		n++
	}
	assert.Equal(t, 70, n)
	assert.Zero(t, budget.Used())
}

func TestIteratorClose(t *testing.T) {
	budget := alloc.NewBudget(1 << 20)
	sb, err := sortbuf.NewOrdered[int64](&sortbuf.Config{ChunkSize: 10, Allocator: budget})
	require.NoError(t, err)
	for p := 0; p < 3; p++ {
		require.NoError(t, sb.WithInserter(func(ins *sortbuf.Inserter[int64]) error {
			return ins.InsertItems(make([]int64, 25)...)
		}))
	}
	it, err := sb.IntoIter(sortbuf.Ascending)
	require.NoError(t, err)
	require.NotZero(t, budget.Used())

	for range it.All() {
		break
	}
	assert.Equal(t, 74, it.Len())

	it.Close()
	assert.Zero(t, budget.Used(), "closing hands back the unread segments")
	assert.Zero(t, it.Len())
	_, ok := it.Next()
	assert.False(t, ok)
	it.Close()
	assert.Zero(t, budget.Used())
}
