package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mwantia/feather"
	"github.com/mwantia/feather/cmd"
	"github.com/mwantia/feather/data"
)

type MkdirCommand struct {
}

func (m *MkdirCommand) Name() string {
	return "mkdir"
}

func (m *MkdirCommand) Description() string {
	return "Create a directory"
}

func (m *MkdirCommand) Usage() string {
	return "mkdir [-p] TARGET"
}

func (m *MkdirCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (int, error) {
	if len(args.Args) != 1 {
		return 2, fmt.Errorf("%w: usage: %s", data.ErrInvalid, m.Usage())
	}

	r, err := api.Resolve(ctx, args.Args[0])
	if err != nil {
		return 1, err
	}

	if !args.Bool("parents") {
		if err := mkdir(ctx, r); err != nil {
			return 1, err
		}
		return 0, nil
	}

	// Create every missing ancestor from the root downwards
	var chain []feather.Resource
	for current := r; !current.Path().IsRoot(); current = current.Parent() {
		chain = append(chain, current)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if err := mkdir(ctx, chain[i]); err != nil && !errors.Is(err, data.ErrExist) {
			return 1, err
		}
	}

	return 0, nil
}

func (m *MkdirCommand) GetFlags() *cmd.CommandFlagSet {
	return &cmd.CommandFlagSet{
		Flags: map[string]*cmd.CommandFlag{
			"parents": {
				Name:        "parents",
				Short:       "p",
				Type:        "bool",
				Description: "Create missing parents and ignore existing directories",
			},
		},
	}
}

func mkdir(ctx context.Context, r feather.Resource) error {
	created, err := r.Mkdir()
	if err != nil {
		return err
	}
	_, err = created.Await(ctx)
	return err
}
