// Package config loads the configuration of the feather command line.
//
// The file is read from the --config flag or the FEATHER_CONFIG environment
// variable. Without either, the defaults apply.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/mwantia/feather"
	"github.com/mwantia/feather/data"
	"github.com/mwantia/feather/log"
	"github.com/mwantia/feather/path"
	"github.com/mwantia/feather/session"
	"gopkg.in/yaml.v3"
)

// Config is the configuration of the feather command line.
type Config struct {
	// Log configures the logger shared by all commands.
	Log LogConfig `yaml:"log"`

	// Transfer configures the defaults of every transfer.
	Transfer TransferConfig `yaml:"transfer"`

	// Session configures how objects are read and written.
	Session SessionConfig `yaml:"session"`

	// Endpoints maps aliases to backend addresses, e.g.
	// "backup: s3://key:secret@minio:9000/backup".
	Endpoints map[string]string `yaml:"endpoints"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error and fatal.
	// Default: info
	Level log.LogLevel `yaml:"level"`

	// File receives the log output in addition to the terminal. Rotated by
	// size when set.
	File string `yaml:"file"`

	// NoTerminal disables output on stdout.
	NoTerminal bool `yaml:"no_terminal"`
}

type TransferConfig struct {
	// Concurrency bounds the files copied at once. Zero means unbounded.
	// Default: 4
	Concurrency int `yaml:"concurrency"`

	// ListingConcurrency bounds the directories listed at once.
	// Default: 2
	ListingConcurrency int `yaml:"listing_concurrency"`
}

type SessionConfig struct {
	// ChunkSize is the size of every read from a backend.
	// Default: 65536
	ChunkSize int `yaml:"chunk_size"`

	// Parallel bounds the concurrent chunk reads of a single file.
	// Default: 4
	Parallel int `yaml:"parallel"`

	// HighWater pauses a reader once this many writes are pending.
	// Default: 64
	HighWater int `yaml:"high_water"`

	// LowWater resumes a paused reader.
	// Default: 16
	LowWater int `yaml:"low_water"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: log.Info,
		},
		Transfer: TransferConfig{
			Concurrency:        4,
			ListingConcurrency: 2,
		},
		Session: SessionConfig{
			ChunkSize: session.DefaultChunkSize,
			Parallel:  session.DefaultParallel,
			HighWater: session.DefaultHighWater,
			LowWater:  session.DefaultLowWater,
		},
		Endpoints: make(map[string]string),
	}
}

// Load reads the file named by FEATHER_CONFIG, or returns the defaults if
// the variable is not set.
func Load() (*Config, error) {
	configPath := os.Getenv("FEATHER_CONFIG")
	if configPath == "" {
		return Default(), nil
	}

	return LoadFile(configPath)
}

// LoadFile reads a configuration file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config '%s': %w", path, err)
	}
	if cfg.Endpoints == nil {
		cfg.Endpoints = make(map[string]string)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in endpoint addresses
// and the log file, so credentials can stay in the environment.
func (c *Config) expandVariables() {
	for name, address := range c.Endpoints {
		c.Endpoints[name] = expandVars(address)
	}
	c.Log.File = expandVars(c.Log.File)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Log.Level < log.Debug || c.Log.Level > log.Fatal {
		errs = append(errs, fmt.Errorf("log.level is out of range: %d", c.Log.Level))
	}

	if c.Session.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("session.chunk_size must be positive"))
	}
	if c.Session.Parallel <= 0 {
		errs = append(errs, fmt.Errorf("session.parallel must be positive"))
	}
	if c.Session.LowWater < 0 || c.Session.LowWater >= c.Session.HighWater {
		errs = append(errs, fmt.Errorf("session.low_water must be below session.high_water"))
	}

	for name, address := range c.Endpoints {
		if name == "" || strings.ContainsAny(name, ":/") {
			errs = append(errs, fmt.Errorf("endpoint name '%s' must not contain ':' or '/'", name))
		}
		if address == "" {
			errs = append(errs, fmt.Errorf("endpoint '%s' has no address", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", data.ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Logger builds the logger described by the log section.
func (c *Config) Logger() *log.Logger {
	return log.NewLogger("feather", c.Log.Level, c.Log.File, c.Log.NoTerminal)
}

// TransferOptions returns the options every transfer starts from.
func (c *Config) TransferOptions(logger *log.Logger) []feather.TransferOption {
	return []feather.TransferOption{
		feather.WithLogger(logger),
		feather.WithConcurrency(c.Transfer.Concurrency),
		feather.WithListingConcurrency(c.Transfer.ListingConcurrency),
	}
}

// SessionOptions returns the options every session is opened with.
func (c *Config) SessionOptions(logger *log.Logger) []session.Option {
	return []session.Option{
		session.WithLogger(logger),
		session.WithChunkSize(c.Session.ChunkSize),
		session.WithParallel(c.Session.Parallel),
		session.WithWriteQueue(c.Session.HighWater, c.Session.LowWater),
	}
}

// Resolve splits a command line target into a backend address and a path.
//
// Targets take one of two forms:
//
//	alias:/path/below/endpoint
//	scheme://address//path/below/endpoint
//
// In the second form the first "//" after the scheme separates the address
// from the path; without it the path is the root. A first form whose name
// is no configured alias is taken as a scheme without "//", like
// "ephemeral:".
func (c *Config) Resolve(target string) (string, *path.Path, error) {
	target = strings.TrimSpace(target)

	if scheme, rest, found := strings.Cut(target, "://"); found {
		address, p, hasPath := strings.Cut(rest, "//")
		if !hasPath {
			return target, path.Root, nil
		}
		parsed, err := parseTargetPath(p)
		if err != nil {
			return "", nil, err
		}
		return scheme + "://" + address, parsed, nil
	}

	name, p, found := strings.Cut(target, ":")
	if !found {
		return "", nil, fmt.Errorf("%w: target '%s' has no endpoint", data.ErrMalformedAddress, target)
	}
	parsed, err := parseTargetPath(p)
	if err != nil {
		return "", nil, err
	}

	if address, exists := c.Endpoints[name]; exists {
		return address, parsed, nil
	}
	return name + ":", parsed, nil
}

func parseTargetPath(p string) (*path.Path, error) {
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return path.Root, nil
	}
	return path.Root.AppendString(p)
}
