package main

import (
	"bufio"
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/lanrat/sortbuf"
	"github.com/lanrat/sortbuf/diff"
)

func diffCommand() *cli.Command {
	return &cli.Command{
		Name:      "diff",
		Usage:     "print the lines found in only one of two inputs",
		ArgsUsage: "A B",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "unique",
				Aliases: []string{"u"},
				Usage:   "ignore how often a line repeats",
			},
		},
		Action: diffAction,
	}
}

func diffAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("diff needs exactly two inputs", 2)
	}
	e := newEnv(c)
	defer e.logMetrics()
	f := newFiller(c, e)

	a, _, err := f.fill(c.Context, []string{c.Args().Get(0)}, sortbuf.Ascending)
	if err != nil {
		return err
	}
	defer a.Close()
	b, _, err := f.fill(c.Context, []string{c.Args().Get(1)}, sortbuf.Ascending)
	if err != nil {
		return err
	}
	defer b.Close()
	seqA, seqB := a.All(), b.All()
	if c.Bool("unique") {
		seqA, seqB = unique(seqA), unique(seqB)
	}

	out := bufio.NewWriter(c.App.Writer)
	r, err := diff.Strings(c.Context, seqA, seqB, func(d diff.Delta, s string) error {
		_, err := fmt.Fprintf(out, "%s %s\n", d, s)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "diff")
	}
	if err := out.Flush(); err != nil {
		return errors.Wrap(err, "write output")
	}
	e.logger.Info(r.String())
	return nil
}
