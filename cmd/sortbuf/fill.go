package main

import (
	"context"
	"errors"
	"io"
	"iter"
	"runtime"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lanrat/sortbuf"
	"github.com/lanrat/sortbuf/digest"
)

const batchSize = 1024

// filler reads input files into a sort buffer with one inserter per worker
type filler struct {
	env          *env
	workers      int
	retryTimeout time.Duration
	stdin        io.Reader
}

// fill sorts the lines of paths into a new buffer and returns its iterator
// together with the digest of every line read.
func (f *filler) fill(ctx context.Context, paths []string, dir sortbuf.Direction) (*sortbuf.Iterator[string], *digest.Digest[string], error) {
	sb, err := sortbuf.New(strings.Compare, f.env.config)
	if err != nil {
		return nil, nil, err
	}
	// the line bytes count against the memory budget as well
	if err := sb.SetPayloadSize(lineBytes); err != nil {
		return nil, nil, err
	}
	if len(paths) == 0 {
		paths = []string{"-"}
	}

	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan string)
	g.Go(func() error {
		defer close(jobs)
		for _, p := range paths {
			select {
			case jobs <- p:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	workers := min(f.workers, len(paths))
	digests := make([]*digest.Digest[string], workers)
	for w := range workers {
		d := digest.Strings()
		digests[w] = d
		g.Go(func() error {
			return sb.WithInserter(func(ins *sortbuf.Inserter[string]) error {
				for path := range jobs {
					if err := f.insertFile(ctx, ins, path, d); err != nil {
						return err
					}
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	total := digest.Strings()
	for _, d := range digests {
		total.Merge(d)
	}
	it, err := sb.IntoIter(dir)
	if err != nil {
		return nil, nil, err
	}
	return it, total, nil
}

func (f *filler) insertFile(ctx context.Context, ins *sortbuf.Inserter[string], path string, d *digest.Digest[string]) error {
	log := f.env.logger.WithField("input", path)
	start := time.Now()
	policy := f.policy(ctx)

	batch := make([]string, 0, batchSize)
	flush := func() error {
		if err := f.insert(ins, batch, policy, log); err != nil {
			return err
		}
		for _, line := range batch {
			d.Add(line)
		}
		batch = batch[:0]
		return nil
	}
	lines := 0
	err := eachLine(path, f.stdin, func(line string) error {
		lines++
		batch = append(batch, line)
		if len(batch) < batchSize {
			return nil
		}
		return flush()
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"lines": lines,
		"took":  time.Since(start),
	}).Debug("input read")
	return nil
}

// insert retries a refused batch until memory frees up or the policy gives up
func (f *filler) insert(ins *sortbuf.Inserter[string], batch []string, policy backoff.BackOffContext, log logrus.FieldLogger) error {
	if len(batch) == 0 {
		return nil
	}
	return backoff.RetryNotify(func() error {
		if err := policy.Context().Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := ins.InsertItems(batch...)
		if err != nil && !errors.Is(err, sortbuf.ErrAllocationFailure) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		log.WithError(err).WithField("wait", wait).Warn("insert refused, retrying")
		runtime.GC()
	})
}

func (f *filler) policy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxElapsedTime = f.retryTimeout
	return backoff.WithContext(b, ctx)
}

func lineBytes(line string) int64 {
	return int64(len(line))
}

// unique drops repeated lines from a sorted sequence
func unique(seq iter.Seq[string]) iter.Seq[string] {
	return sortbuf.Uniq(seq, strings.Compare)
}
