package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// Parser parses user-defined arguments into flags
type Parser struct {
	name    string
	flagSet *CommandFlagSet
}

func NewParser(name string, flagSet *CommandFlagSet) *Parser {
	if flagSet == nil {
		flagSet = &CommandFlagSet{}
	}
	return &Parser{
		name:    name,
		flagSet: flagSet,
	}
}

func (cp *Parser) Parse(raw []string) (*CommandArgs, error) {
	fs, values := cp.build()
	fs.SetOutput(io.Discard)

	if err := fs.Parse(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", cp.name, err)
	}

	args := &CommandArgs{
		Args:  fs.Args(),
		Flags: make(map[string]any),
		Raw:   raw,
	}

	for flagName, flag := range cp.flagSet.Flags {
		changed := fs.Changed(flag.Name)
		if !changed && flag.Default == nil {
			if flag.Required {
				if flag.Short != "" {
					return nil, fmt.Errorf("required flag: -%s / --%s", flag.Short, flag.Name)
				}
				return nil, fmt.Errorf("required flag: --%s", flag.Name)
			}
			continue
		}
		args.Flags[flagName] = deref(values[flagName])
	}

	return args, nil
}

// Usage renders the flag defaults of the command.
func (cp *Parser) Usage() string {
	fs, _ := cp.build()
	return fs.FlagUsages()
}

func (cp *Parser) build() (*pflag.FlagSet, map[string]any) {
	fs := pflag.NewFlagSet(cp.name, pflag.ContinueOnError)
	values := make(map[string]any, len(cp.flagSet.Flags))

	for flagName, flag := range cp.flagSet.Flags {
		switch flag.Type {
		case "bool":
			def, _ := flag.Default.(bool)
			values[flagName] = fs.BoolP(flag.Name, flag.Short, def, flag.Description)
		case "int":
			def, _ := flag.Default.(int)
			values[flagName] = fs.IntP(flag.Name, flag.Short, def, flag.Description)
		case "stringSlice":
			def, _ := flag.Default.([]string)
			values[flagName] = fs.StringSliceP(flag.Name, flag.Short, def, flag.Description)
		default:
			def, _ := flag.Default.(string)
			values[flagName] = fs.StringP(flag.Name, flag.Short, def, flag.Description)
		}
	}

	return fs, values
}

func deref(value any) any {
	switch v := value.(type) {
	case *bool:
		return *v
	case *int:
		return *v
	case *[]string:
		return *v
	case *string:
		return *v
	default:
		return value
	}
}
