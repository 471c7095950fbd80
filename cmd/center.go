package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/mwantia/feather/data"
)

// CommandCenter holds the registered commands and dispatches command lines
// to them.
type CommandCenter struct {
	mu       sync.RWMutex
	commands map[string]Command
}

func NewCommandCenter() *CommandCenter {
	return &CommandCenter{
		commands: make(map[string]Command),
	}
}

// Register adds a command. Names must be unique.
func (cc *CommandCenter) Register(command Command) error {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	name := command.Name()
	if name == "" {
		return fmt.Errorf("%w: command without name", data.ErrInvalid)
	}
	if _, exists := cc.commands[name]; exists {
		return fmt.Errorf("%w: command '%s' is already registered", data.ErrExist, name)
	}

	cc.commands[name] = command
	return nil
}

func (cc *CommandCenter) Get(name string) (Command, bool) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	command, exists := cc.commands[name]
	return command, exists
}

// Commands returns the registered commands sorted by name.
func (cc *CommandCenter) Commands() []Command {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	commands := make([]Command, 0, len(cc.commands))
	for _, command := range cc.commands {
		commands = append(commands, command)
	}
	slices.SortFunc(commands, func(a, b Command) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return commands
}

// Execute parses raw as "<command> [flags] [args]" and runs the command.
func (cc *CommandCenter) Execute(ctx context.Context, api API, raw []string, writer io.Writer) (int, error) {
	if len(raw) == 0 {
		return 2, fmt.Errorf("%w: no command given", data.ErrInvalid)
	}

	command, exists := cc.Get(raw[0])
	if !exists {
		return 2, fmt.Errorf("%w: unknown command '%s'", data.ErrInvalid, raw[0])
	}

	args, err := NewParser(command.Name(), command.GetFlags()).Parse(raw[1:])
	if err != nil {
		return 2, err
	}

	return command.Execute(ctx, api, args, writer)
}

// Help writes the usage of every command to writer.
func (cc *CommandCenter) Help(writer io.Writer) {
	for _, command := range cc.Commands() {
		fmt.Fprintf(writer, "  %-8s %s\n", command.Name(), command.Description())
		fmt.Fprintf(writer, "           usage: %s\n", command.Usage())
		if usage := NewParser(command.Name(), command.GetFlags()).Usage(); usage != "" {
			for _, line := range strings.Split(strings.TrimRight(usage, "\n"), "\n") {
				fmt.Fprintf(writer, "         %s\n", line)
			}
		}
	}
}
