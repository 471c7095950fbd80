package builtin

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/mwantia/feather/cmd"
	"github.com/mwantia/feather/data"
)

type LsCommand struct {
}

// Name returns the command identifier
func (ls *LsCommand) Name() string {
	return "ls"
}

// Description returns human-readable help text
func (ls *LsCommand) Description() string {
	return "List the children of a directory"
}

// Usage returns a usage string for help (e.g. "ls -al [path]")
func (ls *LsCommand) Usage() string {
	return "ls [-l] TARGET"
}

// Execute runs the command with parsed arguments
// Returns exit code (0 = success) and error message
func (ls *LsCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (int, error) {
	if len(args.Args) != 1 {
		return 2, fmt.Errorf("%w: usage: %s", data.ErrInvalid, ls.Usage())
	}

	r, err := api.Resolve(ctx, args.Args[0])
	if err != nil {
		return 1, err
	}
	stat, err := r.Stat().Await(ctx)
	if err != nil {
		return 1, err
	}

	entries := []*data.Stat{stat}
	if stat.Dir {
		entries = slices.Clone(stat.Files())
		slices.SortFunc(entries, func(a, b *data.Stat) int {
			return strings.Compare(a.Name, b.Name)
		})
	}

	for _, s := range entries {
		e := entry{stat: s}
		if args.Bool("long") {
			fmt.Fprintf(writer, "%s %10s %s %s\n", e.DisplayMode(), e.DisplaySize(), e.DisplayModTime(), e.DisplayName())
			continue
		}
		fmt.Fprintln(writer, e.DisplayName())
	}

	return 0, nil
}

// GetFlags returns the flag set for this command (this is optional)
func (ls *LsCommand) GetFlags() *cmd.CommandFlagSet {
	return &cmd.CommandFlagSet{
		Flags: map[string]*cmd.CommandFlag{
			"long": {
				Name:        "long",
				Short:       "l",
				Type:        "bool",
				Description: "Show mode, size and modification time",
			},
		},
	}
}
