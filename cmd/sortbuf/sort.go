package main

import (
	"bufio"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/lanrat/sortbuf"
	"github.com/lanrat/sortbuf/digest"
)

func sortCommand() *cli.Command {
	return &cli.Command{
		Name:      "sort",
		Usage:     "sort the lines of all inputs",
		ArgsUsage: "[FILE...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "reverse",
				Aliases: []string{"r"},
				Usage:   "output in descending order",
			},
			&cli.BoolFlag{
				Name:    "unique",
				Aliases: []string{"u"},
				Usage:   "output each distinct line once",
			},
			&cli.BoolFlag{
				Name:  "verify",
				Usage: "check that the output holds exactly the lines read",
			},
		},
		Action: sortAction,
	}
}

func direction(c *cli.Context) sortbuf.Direction {
	if c.Bool("reverse") {
		return sortbuf.Descending
	}
	return sortbuf.Ascending
}

func newFiller(c *cli.Context, e *env) *filler {
	return &filler{
		env:          e,
		workers:      c.Int("workers"),
		retryTimeout: c.Duration("retry-timeout"),
		stdin:        c.App.Reader,
	}
}

func sortAction(c *cli.Context) error {
	e := newEnv(c)
	defer e.logMetrics()

	it, read, err := newFiller(c, e).fill(c.Context, c.Args().Slice(), direction(c))
	if err != nil {
		return err
	}
	defer it.Close()

	written := digest.Strings()
	seq := it.All()
	if c.Bool("verify") {
		seq = written.Tee(seq)
	}
	if c.Bool("unique") {
		seq = unique(seq)
	}

	out := bufio.NewWriter(c.App.Writer)
	lines := 0
	for line := range seq {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return errors.Wrap(err, "write output")
		}
		lines++
	}
	if err := out.Flush(); err != nil {
		return errors.Wrap(err, "write output")
	}

	if c.Bool("verify") {
		if !read.Equal(written) {
			return fmt.Errorf("output does not match input: read %s, sorted %s", read, written)
		}
		e.logger.WithField("digest", read.String()).Info("output verified")
	}
	e.logger.WithFields(logrus.Fields{
		"read":    read.Count(),
		"written": lines,
	}).Debug("sort done")
	return nil
}
