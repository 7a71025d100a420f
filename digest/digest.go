// Package digest computes order-independent checksums of item multisets.
//
// A Digest sums the xxhash64 of every item's encoding modulo 2^64 and counts
// the items, so two collections have equal digests when they hold the same
// items the same number of times, regardless of order. It is used to check
// that sorting neither lost nor duplicated anything.
package digest

import (
	"fmt"
	"iter"

	"github.com/cespare/xxhash/v2"
)

// Encoder appends the canonical encoding of item to buf and returns it.
type Encoder[E any] func(buf []byte, item E) []byte

// Digest accumulates items. The zero value is not usable; use New.
type Digest[E any] struct {
	encode Encoder[E]
	buf    []byte
	sum    uint64
	count  uint64
}

// New returns an empty Digest using encode to turn items into bytes.
func New[E any](encode Encoder[E]) *Digest[E] {
	return &Digest[E]{encode: encode}
}

// Strings returns an empty Digest for strings.
func Strings() *Digest[string] {
	return New(func(buf []byte, s string) []byte {
		return append(buf, s...)
	})
}

// Add adds one item.
func (d *Digest[E]) Add(item E) {
	d.buf = d.encode(d.buf[:0], item)
	d.sum += xxhash.Sum64(d.buf)
	d.count++
}

// AddAll adds every item of seq.
func (d *Digest[E]) AddAll(seq iter.Seq[E]) {
	for item := range seq {
		d.Add(item)
	}
}

// Tee returns a sequence yielding the items of seq unchanged while adding them
// to d.
func (d *Digest[E]) Tee(seq iter.Seq[E]) iter.Seq[E] {
	return func(yield func(E) bool) {
		for item := range seq {
			d.Add(item)
			if !yield(item) {
				return
			}
		}
	}
}

// Merge adds everything accumulated by other, which must use the same encoding.
func (d *Digest[E]) Merge(other *Digest[E]) {
	d.sum += other.sum
	d.count += other.count
}

// Sum64 returns the combined hash of all items added so far.
func (d *Digest[E]) Sum64() uint64 {
	return d.sum
}

// Count returns the number of items added so far.
func (d *Digest[E]) Count() uint64 {
	return d.count
}

// Equal reports whether d and other saw the same multiset of items.
func (d *Digest[E]) Equal(other *Digest[E]) bool {
	return d.sum == other.sum && d.count == other.count
}

func (d *Digest[E]) String() string {
	return fmt.Sprintf("%016x/%d", d.sum, d.count)
}
