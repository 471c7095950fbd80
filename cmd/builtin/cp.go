package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/mwantia/feather"
	"github.com/mwantia/feather/cmd"
	"github.com/mwantia/feather/data"
	"github.com/mwantia/feather/pipes"
)

// ErrChecksumMismatch reports a copied file whose content differs from its
// source.
var ErrChecksumMismatch = errors.New("feather: checksum mismatch")

type CpCommand struct {
}

func (cp *CpCommand) Name() string {
	return "cp"
}

func (cp *CpCommand) Description() string {
	return "Copy a file or a directory tree between endpoints"
}

func (cp *CpCommand) Usage() string {
	return "cp [-c N] [--verify] [--progress] SOURCE DESTINATION"
}

func (cp *CpCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (int, error) {
	if len(args.Args) != 2 {
		return 2, fmt.Errorf("%w: usage: %s", data.ErrInvalid, cp.Usage())
	}

	source, err := api.Resolve(ctx, args.Args[0])
	if err != nil {
		return 1, err
	}
	destination, err := api.Resolve(ctx, args.Args[1])
	if err != nil {
		return 1, err
	}

	var opts []feather.TransferOption
	if n, ok := args.Int("concurrency"); ok {
		opts = append(opts, feather.WithConcurrency(n))
	}

	var sums *checksums
	if args.Bool("verify") {
		sums = &checksums{filters: make(map[string]*pipes.Checksum)}
		opts = append(opts, feather.WithFilters(sums.filter))
	}

	transfer, err := api.NewTransfer(source, destination, opts...)
	if err != nil {
		return 2, err
	}

	if args.Bool("progress") {
		err = api.Watch(ctx, transfer, writer)
	} else {
		err = await(ctx, transfer)
	}

	stats := transfer.Stats()
	fmt.Fprintf(writer, "Copied %d files in %d directories, %s\n", stats.Files-stats.Failed, stats.Directories, transfer.Progress())
	for _, failure := range transfer.Failures() {
		fmt.Fprintf(writer, "  failed: %v\n", failure)
	}
	if err != nil {
		return 1, err
	}

	if sums != nil {
		verified, err := sums.verify(ctx, destination)
		if err != nil {
			return 1, err
		}
		fmt.Fprintf(writer, "Verified %d files\n", verified)
	}

	return 0, nil
}

func (cp *CpCommand) GetFlags() *cmd.CommandFlagSet {
	return &cmd.CommandFlagSet{
		Flags: map[string]*cmd.CommandFlag{
			"concurrency": {
				Name:        "concurrency",
				Short:       "c",
				Type:        "int",
				Description: "Number of files copied at once (0 is unbounded)",
			},
			"verify": {
				Name:        "verify",
				Type:        "bool",
				Description: "Compare BLAKE3 digests of source and destination afterwards",
			},
			"progress": {
				Name:        "progress",
				Type:        "bool",
				Description: "Report progress while copying",
			},
		},
	}
}

// await starts transfer and waits for it, stopping it if ctx ends first.
func await(ctx context.Context, transfer feather.Transfer) error {
	done, err := transfer.Start()
	if err != nil {
		return err
	}

	select {
	case <-done.Done():
	case <-ctx.Done():
		transfer.Stop()
		<-done.Done()
	}
	return done.Err()
}

// checksums keeps one digest filter per copied file, keyed by its path
// relative to the transfer root.
type checksums struct {
	mu      sync.Mutex
	filters map[string]*pipes.Checksum
}

func (c *checksums) filter(rel feather.Relative[feather.Resource]) []feather.Filter {
	checksum := pipes.NewChecksum()

	c.mu.Lock()
	c.filters[rel.Key()] = checksum
	c.mu.Unlock()

	return []feather.Filter{checksum}
}

// verify reads the destination tree back through a single digest filter and
// compares every file with the digest taken while copying it.
func (c *checksums) verify(ctx context.Context, destination feather.Resource) (int, error) {
	tap, err := destination.Tap()
	if err != nil {
		return 0, err
	}

	readback := pipes.NewChecksum()
	pipe, err := feather.TapPipe(tap).Attach(feather.FilterPipe(readback))
	if err != nil {
		return 0, err
	}
	if pipe, err = pipe.Attach(feather.SinkPipe(pipes.NewDiscardSink())); err != nil {
		return 0, err
	}

	done, err := pipe.Start()
	if err != nil {
		return 0, err
	}
	if _, err := done.Await(ctx); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	actual := readback.Sums()
	keys := make([]string, 0, len(c.filters))
	for key := range c.filters {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	errs := data.Errors{}
	for _, key := range keys {
		var expected string
		// Every filter saw exactly one file
		for _, sum := range c.filters[key].Sums() {
			expected = sum
		}
		if got := actual[key]; got != expected {
			errs.Add(fmt.Errorf("%w: '%s' expected %s, got %s", ErrChecksumMismatch, key, expected, got))
		}
	}

	return len(keys), errs.Errors()
}
