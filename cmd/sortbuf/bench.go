package main

import (
	"cmp"
	"fmt"
	"math/rand"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/google/btree"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/lanrat/sortbuf"
)

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "compare sorting random integers with a slice, a btree and sort buffers",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "items",
				Value: 1_000_000,
				Usage: "number of random items to sort",
			},
			&cli.IntFlag{
				Name:  "producers",
				Value: 8,
				Usage: "number of producers for the concurrent sort buffer run",
			},
			&cli.Int64Flag{
				Name:  "seed",
				Value: 1,
				Usage: "random seed",
			},
		},
		Action: benchAction,
	}
}

type benchCase struct {
	name string
	run  func([]uint64) (int, error)
}

func benchAction(c *cli.Context) error {
	e := newEnv(c)
	n := c.Int("items")
	if n < 1 {
		return fmt.Errorf("items must be at least 1")
	}
	producers := c.Int("producers")
	r := rand.New(rand.NewSource(c.Int64("seed")))
	data := make([]uint64, n)
	for i := range data {
		data[i] = r.Uint64()
	}

	cases := []benchCase{
		{"slice", func(in []uint64) (int, error) {
			s := slices.Clone(in)
			slices.Sort(s)
			return len(s), nil
		}},
		{"btree", benchBTree},
		{"sortbuf/1", func(in []uint64) (int, error) {
			return benchSortBuf(e, in, 1)
		}},
		{fmt.Sprintf("sortbuf/%d", producers), func(in []uint64) (int, error) {
			return benchSortBuf(e, in, producers)
		}},
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "method\titems\ttime\titems/s")
	for _, bc := range cases {
		start := time.Now()
		got, err := bc.run(data)
		if err != nil {
			return fmt.Errorf("%s: %w", bc.name, err)
		}
		took := time.Since(start)
		fmt.Fprintf(w, "%s\t%d\t%s\t%.0f\n", bc.name, got, took.Round(time.Microsecond), float64(got)/took.Seconds())
	}
	return w.Flush()
}

type keyedItem struct {
	v uint64
	i int
}

func benchBTree(in []uint64) (int, error) {
	// the position keeps duplicates apart
	t := btree.NewG[keyedItem](32, func(a, b keyedItem) bool {
		if a.v != b.v {
			return a.v < b.v
		}
		return a.i < b.i
	})
	for i, v := range in {
		t.ReplaceOrInsert(keyedItem{v, i})
	}
	n := 0
	t.Ascend(func(keyedItem) bool {
		n++
		return true
	})
	return n, nil
}

func benchSortBuf(e *env, in []uint64, producers int) (int, error) {
	sb, err := sortbuf.New(cmp.Compare[uint64], &sortbuf.Config{
		ChunkBytes: e.config.ChunkBytes,
		Allocator:  e.config.Allocator,
		Logger:     e.logger,
	})
	if err != nil {
		return 0, err
	}
	per := (len(in) + producers - 1) / producers
	var g errgroup.Group
	for lo := 0; lo < len(in); lo += per {
		part := in[lo:min(lo+per, len(in))]
		g.Go(func() error {
			return sb.WithInserter(func(ins *sortbuf.Inserter[uint64]) error {
				return ins.InsertItems(part...)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	it, err := sb.IntoIter(sortbuf.Ascending)
	if err != nil {
		return 0, err
	}
	n := 0
	for range it.All() {
		n++
	}
	return n, nil
}
