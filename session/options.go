package session

import (
	"fmt"

	"github.com/mwantia/feather/data"
	"github.com/mwantia/feather/log"
)

const (
	DefaultChunkSize = 64 * 1024
	DefaultParallel  = 4
	DefaultHighWater = 64
	DefaultLowWater  = 16
)

type Option func(*Options) error

type Options struct {
	Logger *log.Logger

	// ChunkSize is the size of the slices read by a tap.
	ChunkSize int
	// Parallel bounds the chunk readers of one tap when the downstream
	// accepts slices out of order.
	Parallel int
	// HighWater and LowWater bound the write queue of a sink. A sink pauses
	// its upstream once HighWater slices are queued and resumes it at
	// LowWater.
	HighWater int
	LowWater  int
}

func newDefaultOptions() *Options {
	return &Options{
		ChunkSize: DefaultChunkSize,
		Parallel:  DefaultParallel,
		HighWater: DefaultHighWater,
		LowWater:  DefaultLowWater,
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(o *Options) error {
		if logger == nil {
			return fmt.Errorf("%w: nil logger", data.ErrInvalid)
		}
		o.Logger = logger
		return nil
	}
}

func WithChunkSize(size int) Option {
	return func(o *Options) error {
		if size <= 0 {
			return fmt.Errorf("%w: chunk size must be positive", data.ErrInvalid)
		}
		o.ChunkSize = size
		return nil
	}
}

func WithParallel(n int) Option {
	return func(o *Options) error {
		if n <= 0 {
			return fmt.Errorf("%w: parallel readers must be positive", data.ErrInvalid)
		}
		o.Parallel = n
		return nil
	}
}

func WithWriteQueue(high, low int) Option {
	return func(o *Options) error {
		if high <= 0 || low < 0 || low >= high {
			return fmt.Errorf("%w: write queue needs 0 <= low < high", data.ErrInvalid)
		}
		o.HighWater = high
		o.LowWater = low
		return nil
	}
}
