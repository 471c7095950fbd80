package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mwantia/feather/cmd"
	"github.com/mwantia/feather/data"
)

type StatCommand struct {
}

func (s *StatCommand) Name() string {
	return "stat"
}

func (s *StatCommand) Description() string {
	return "Show the metadata of a file or directory"
}

func (s *StatCommand) Usage() string {
	return "stat [--json] TARGET"
}

func (s *StatCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (int, error) {
	if len(args.Args) != 1 {
		return 2, fmt.Errorf("%w: usage: %s", data.ErrInvalid, s.Usage())
	}

	r, err := api.Resolve(ctx, args.Args[0])
	if err != nil {
		return 1, err
	}
	stat, err := r.Stat().Await(ctx)
	if err != nil {
		return 1, err
	}

	if args.Bool("json") {
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		return 0, encoder.Encode(stat)
	}

	e := entry{stat: stat}
	fmt.Fprintf(writer, "Resource: %s\n", r)
	fmt.Fprintf(writer, "Name:     %s\n", e.DisplayName())
	fmt.Fprintf(writer, "Mode:     %s\n", e.DisplayMode())
	fmt.Fprintf(writer, "Modified: %s\n", e.DisplayModTime())
	if stat.Dir {
		fmt.Fprintf(writer, "Children: %d\n", len(stat.Files()))
		fmt.Fprintf(writer, "Size:     %s across %d entries\n", cmd.FormatSize(stat.TotalSize()), stat.TotalCount())
	} else {
		fmt.Fprintf(writer, "Size:     %s (%d bytes)\n", cmd.FormatSize(stat.Size), stat.Size)
	}

	return 0, nil
}

func (s *StatCommand) GetFlags() *cmd.CommandFlagSet {
	return &cmd.CommandFlagSet{
		Flags: map[string]*cmd.CommandFlag{
			"json": {
				Name:        "json",
				Type:        "bool",
				Description: "Print the stat as JSON",
			},
		},
	}
}
