package sortbuf

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/lanrat/sortbuf/alloc"
	"github.com/lanrat/sortbuf/monitoring"
)

const (
	// DefaultChunkBytes is the default target size of a chunk. It is large enough for
	// bulk sorting to pay off and small enough to run several inserters per core on
	// machines with around 1GB of memory.
	DefaultChunkBytes = 16 * 1024 * 1024

	// DefaultShrinkThreshold is the number of bytes of consumed space a run segment
	// may carry during iteration before it is compacted.
	DefaultShrinkThreshold = 1024 * 1024
)

// Config holds configuration settings for a SortBuf and its inserters
type Config struct {
	ChunkBytes       int // target size of a chunk in bytes, used when ChunkSize is 0
	ChunkSize        int // maximum amount of items stored in each chunk, overrides ChunkBytes
	InitialChunkSize int // capacity in items of the first allocation of a chunk
	NumSortWorkers   int // maximum number of goroutines sorting the chunks of one inserter at finalize
	ShrinkThreshold  int // bytes of consumed space tolerated per segment while iterating, negative disables compaction

	Allocator alloc.Checker       // consulted before every allocation, nil never refuses
	Logger    logrus.FieldLogger  // nil discards log output
	Metrics   *monitoring.Metrics // nil disables metrics
}

// DefaultConfig returns the default configuration options used if none provided
func DefaultConfig() *Config {
	return &Config{
		ChunkBytes:       DefaultChunkBytes,
		ChunkSize:        0, // derived from ChunkBytes and the item size
		InitialChunkSize: 1024,
		NumSortWorkers:   4,
		ShrinkThreshold:  DefaultShrinkThreshold,
		Allocator:        alloc.NewDummyMonitor(),
		Logger:           discardLogger(),
	}
}

// mergeConfig takes a provided config and returns a copy with every value not set
// replaced by its default. Negative sizes are rejected.
func mergeConfig(c *Config) (*Config, error) {
	d := DefaultConfig()
	if c == nil {
		return d, nil
	}
	merged := *c
	for _, f := range []struct {
		name  string
		value int
	}{
		{"ChunkBytes", c.ChunkBytes},
		{"ChunkSize", c.ChunkSize},
		{"InitialChunkSize", c.InitialChunkSize},
		{"NumSortWorkers", c.NumSortWorkers},
	} {
		if f.value < 0 {
			return nil, &ConfigError{Field: f.name, Value: f.value, Reason: "must not be negative"}
		}
	}
	if merged.ChunkBytes == 0 {
		merged.ChunkBytes = d.ChunkBytes
	}
	if merged.InitialChunkSize == 0 {
		merged.InitialChunkSize = d.InitialChunkSize
	}
	if merged.NumSortWorkers == 0 {
		merged.NumSortWorkers = d.NumSortWorkers
	}
	if merged.ShrinkThreshold == 0 {
		merged.ShrinkThreshold = d.ShrinkThreshold
	}
	if merged.Allocator == nil {
		merged.Allocator = d.Allocator
	}
	if merged.Logger == nil {
		merged.Logger = d.Logger
	}
	// skipping Metrics as nil disables them
	return &merged, nil
}

// chunkItems returns the maximum number of items per chunk for items of the given size
func (c *Config) chunkItems(size int64) int {
	if c.ChunkSize > 0 {
		return c.ChunkSize
	}
	return max(1, int(int64(c.ChunkBytes)/size))
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
