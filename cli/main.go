package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/mwantia/feather/cli/tui"
	"github.com/mwantia/feather/cmd"
	"github.com/mwantia/feather/cmd/builtin"
	"github.com/mwantia/feather/config"
	"github.com/mwantia/feather/log"
	"github.com/spf13/pflag"
)

func main() {
	flags := pflag.NewFlagSet("feather", pflag.ContinueOnError)
	// Everything after the command name belongs to the command
	flags.SetInterspersed(false)

	configFile := flags.String("config", "", "Path to the configuration file (default: $FEATHER_CONFIG)")
	logLevel := flags.String("log-level", "", "Log level: debug, info, warn, error or fatal")
	logFile := flags.String("log-file", "", "Write the log to this file as well")
	plain := flags.Bool("plain", false, "Report progress as plain lines instead of the terminal view")

	center := cmd.NewCommandCenter()
	if err := builtin.InitBuiltin(center); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup Command Center: %v\n", err)
		os.Exit(1)
	}

	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: feather [flags] <command> [args]\n\nFlags:\n%s\nCommands:\n", flags.FlagUsages())
		center.Help(os.Stderr)
	}

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	if flags.NArg() == 0 {
		flags.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		if cfg.Log.Level, err = log.ParseLevel(*logLevel); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	env := cmd.NewEnvironment(cfg, cfg.Logger())
	if !*plain && isTerminal(os.Stdout) {
		env.SetWatcher(tui.Watch)
	}

	code, err := center.Execute(ctx, env, flags.Args(), os.Stdout)
	stop()
	if closeErr := env.Close(context.Background()); closeErr != nil {
		env.Logger().Warn("Failed to close sessions: %v", closeErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "feather: %v\n", err)
	}
	os.Exit(code)
}

func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		return config.LoadFile(configFile)
	}
	return config.Load()
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
