package builtin

import (
	"github.com/mwantia/feather/cmd"
	"github.com/mwantia/feather/data"
)

// InitBuiltin registers every builtin command.
func InitBuiltin(center *cmd.CommandCenter) error {
	errs := data.Errors{}
	for _, command := range []cmd.Command{
		&CpCommand{},
		&LsCommand{},
		&MkdirCommand{},
		&RmCommand{},
		&StatCommand{},
	} {
		errs.Add(center.Register(command))
	}
	return errs.Errors()
}
