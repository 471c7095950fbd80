package feather

import (
	"fmt"

	"github.com/mwantia/feather/clock"
	"github.com/mwantia/feather/data"
	"github.com/mwantia/feather/log"
)

type TransferOptions struct {
	// Concurrency bounds the data transfers running at once. Zero or less
	// means unbounded.
	Concurrency int
	// ListingConcurrency bounds the directory listings running at once.
	// Zero or less means unbounded.
	ListingConcurrency int

	Logger        *log.Logger
	LogLevel      log.LogLevel
	LogFile       string
	NoTerminalLog bool

	Clock clock.Clock
	// Filters builds extra filters for every data transfer. They are placed
	// after the byte monitor.
	Filters func(rel Relative[Resource]) []Filter
}

type TransferOption func(*TransferOptions) error

func newDefaultTransferOptions() *TransferOptions {
	return &TransferOptions{
		Concurrency:        4,
		ListingConcurrency: 2,
		LogLevel:           log.Info,
	}
}

func WithConcurrency(n int) TransferOption {
	return func(opts *TransferOptions) error {
		opts.Concurrency = n
		return nil
	}
}

func WithListingConcurrency(n int) TransferOption {
	return func(opts *TransferOptions) error {
		opts.ListingConcurrency = n
		return nil
	}
}

// WithLogger replaces the logger built from the log level and log file.
func WithLogger(logger *log.Logger) TransferOption {
	return func(opts *TransferOptions) error {
		if logger == nil {
			return fmt.Errorf("%w: nil logger", data.ErrInvalid)
		}
		opts.Logger = logger
		return nil
	}
}

func WithLogLevel(logLevel log.LogLevel) TransferOption {
	return func(opts *TransferOptions) error {
		opts.LogLevel = logLevel
		return nil
	}
}

func WithoutTerminalLog() TransferOption {
	return func(opts *TransferOptions) error {
		opts.NoTerminalLog = true
		return nil
	}
}

func WithLogFile(logFile string) TransferOption {
	return func(opts *TransferOptions) error {
		opts.LogFile = logFile
		return nil
	}
}

func WithClock(c clock.Clock) TransferOption {
	return func(opts *TransferOptions) error {
		if c == nil {
			return fmt.Errorf("%w: nil clock", data.ErrInvalid)
		}
		opts.Clock = c
		return nil
	}
}

func WithFilters(factory func(rel Relative[Resource]) []Filter) TransferOption {
	return func(opts *TransferOptions) error {
		opts.Filters = factory
		return nil
	}
}
