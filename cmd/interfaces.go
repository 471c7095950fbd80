package cmd

import (
	"context"
	"io"

	"github.com/mwantia/feather"
	"github.com/mwantia/feather/log"
)

// API is what commands can do with the endpoints known to the command line.
type API interface {
	// Resolve opens the resource named by a target like "alias:/path" or
	// "direct:///srv//path". Targets on the same endpoint share one
	// initialized session.
	Resolve(ctx context.Context, target string) (feather.Resource, error)

	// NewTransfer creates a transfer with the configured defaults followed
	// by opts.
	NewTransfer(source, destination feather.Resource, opts ...feather.TransferOption) (*feather.ProxyTransfer, error)

	// Watch starts transfer and blocks until it ends, reporting progress to
	// writer. Canceling ctx stops the transfer.
	Watch(ctx context.Context, transfer feather.Transfer, writer io.Writer) error

	// Logger returns the logger commands should derive theirs from.
	Logger() *log.Logger
}

// Command represents an executable command of the feather command line.
type Command interface {
	// Name returns the command identifier
	Name() string

	// Description returns human-readable help text
	Description() string

	// Usage returns a usage string for help (e.g. "ls -l TARGET")
	Usage() string

	// Execute runs the command with parsed arguments
	// The writer parameter is where command output should be written
	// Returns exit code (0 = success) and error message
	Execute(ctx context.Context, api API, args *CommandArgs, writer io.Writer) (int, error)

	// GetFlags returns the flag set for this command (this is optional)
	GetFlags() *CommandFlagSet
}
