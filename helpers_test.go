package sortbuf_test

import (
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lanrat/sortbuf"
	"github.com/lanrat/sortbuf/alloc"
)

// drain consumes sb and returns every item in the given direction
func drain[E any](t testing.TB, sb *sortbuf.SortBuf[E], dir sortbuf.Direction) []E {
	t.Helper()
	it, err := sb.IntoIter(dir)
	require.NoError(t, err)
	out := make([]E, 0, it.Len())
	for item := range it.All() {
		out = append(out, item)
	}
	require.Zero(t, it.Len())
	return out
}

func randomInts(r *rand.Rand, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = r.Intn(n)
	}
	return out
}

// switchable grants every request until refusing is set
type switchable struct {
	refusing atomic.Bool
}

func (s *switchable) CheckAlloc(size int64) error {
	if s.refusing.Load() {
		return alloc.ErrInsufficientMemory
	}
	return nil
}
