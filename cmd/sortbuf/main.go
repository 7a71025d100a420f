// Command sortbuf sorts, compares and benchmarks line oriented input using
// sort buffers fed by concurrent producers.
//
// Usage:
//
//	sortbuf sort [--reverse] [--unique] [--workers N] FILE...
//	sortbuf diff A B
//	sortbuf bench --items 1000000 --producers 8
//
// With no FILE, or when FILE is -, standard input is read.
package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "sortbuf: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "sortbuf",
		Usage: "sort large line oriented inputs in memory with concurrent producers",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log debug output to stderr",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Value:   runtime.GOMAXPROCS(0),
				Usage:   "number of concurrent producers reading the inputs",
			},
			&cli.IntFlag{
				Name:  "chunk-bytes",
				Usage: "target size of a chunk in bytes (0 = default)",
			},
			&cli.Int64Flag{
				Name:    "memory-budget",
				Usage:   "bytes the buffers may reserve for lines and their headers, 0 derives a limit from the Go memory limit",
				EnvVars: []string{"SORTBUF_MEMORY_BUDGET"},
			},
			&cli.DurationFlag{
				Name:  "retry-timeout",
				Value: 10 * time.Second,
				Usage: "how long a refused insert is retried before giving up",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Int("workers") < 1 {
				return fmt.Errorf("workers must be at least 1")
			}
			if c.Int64("memory-budget") < 0 {
				return fmt.Errorf("memory budget cannot be a negative value")
			}
			return nil
		},
		Commands: []*cli.Command{
			sortCommand(),
			diffCommand(),
			benchCommand(),
		},
	}
}
