package builtin

import (
	"context"
	"fmt"
	"io"

	"github.com/mwantia/feather"
	"github.com/mwantia/feather/cmd"
	"github.com/mwantia/feather/data"
)

type RmCommand struct {
}

func (rm *RmCommand) Name() string {
	return "rm"
}

func (rm *RmCommand) Description() string {
	return "Remove a file or an empty directory"
}

func (rm *RmCommand) Usage() string {
	return "rm [-r] [-v] TARGET"
}

func (rm *RmCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (int, error) {
	if len(args.Args) != 1 {
		return 2, fmt.Errorf("%w: usage: %s", data.ErrInvalid, rm.Usage())
	}

	r, err := api.Resolve(ctx, args.Args[0])
	if err != nil {
		return 1, err
	}

	verbose := io.Discard
	if args.Bool("verbose") {
		verbose = writer
	}
	if err := remove(ctx, r, args.Bool("recursive"), verbose); err != nil {
		return 1, err
	}
	return 0, nil
}

func (rm *RmCommand) GetFlags() *cmd.CommandFlagSet {
	return &cmd.CommandFlagSet{
		Flags: map[string]*cmd.CommandFlag{
			"recursive": {
				Name:        "recursive",
				Short:       "r",
				Type:        "bool",
				Description: "Remove directories and their contents",
			},
			"verbose": {
				Name:        "verbose",
				Short:       "v",
				Type:        "bool",
				Description: "Print every removed resource",
			},
		},
	}
}

// remove unlinks r, its children first when recursive is set.
func remove(ctx context.Context, r feather.Resource, recursive bool, verbose io.Writer) error {
	if recursive {
		children, err := r.Subresources()
		if err != nil {
			return err
		}
		resources, err := children.Await(ctx)
		if err != nil {
			return err
		}

		for _, child := range resources {
			if err := remove(ctx, child, recursive, verbose); err != nil {
				return err
			}
		}
		// The root itself cannot be unlinked, only emptied
		if r.Path().IsRoot() {
			return nil
		}
	}

	removed, err := r.Unlink()
	if err != nil {
		return err
	}
	if _, err := removed.Await(ctx); err != nil {
		return err
	}

	fmt.Fprintf(verbose, "removed '%s'\n", r.Path())
	return nil
}
