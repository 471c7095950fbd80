package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mwantia/feather"
	"github.com/mwantia/feather/config"
	"github.com/mwantia/feather/log"
	"github.com/mwantia/feather/session"
)

// WatchFunc reports the progress of a running transfer until it ends.
type WatchFunc func(ctx context.Context, transfer feather.Transfer, writer io.Writer) error

// Environment is the API backed by a configuration. It keeps one session
// per endpoint for its whole lifetime.
type Environment struct {
	config *config.Config
	logger *log.Logger
	cache  *feather.SessionCache
	watch  WatchFunc
}

var _ API = (*Environment)(nil)

func NewEnvironment(cfg *config.Config, logger *log.Logger) *Environment {
	return &Environment{
		config: cfg,
		logger: logger,
		cache:  feather.NewSessionCache(),
		watch:  WatchLines(time.Second),
	}
}

// SetWatcher replaces how transfers report their progress.
func (e *Environment) SetWatcher(watch WatchFunc) {
	if watch != nil {
		e.watch = watch
	}
}

func (e *Environment) Logger() *log.Logger {
	return e.logger
}

func (e *Environment) Resolve(ctx context.Context, target string) (feather.Resource, error) {
	address, p, err := e.config.Resolve(target)
	if err != nil {
		return feather.Resource{}, err
	}

	s, err := session.Open(address, e.config.SessionOptions(e.logger)...)
	if err != nil {
		return feather.Resource{}, err
	}

	r := s.Select(p)
	if cached, ok := e.cache.Take(r); ok {
		s.Close()
		return cached, nil
	}

	if _, err := s.Initialize().Await(ctx); err != nil {
		s.Close()
		return feather.Resource{}, fmt.Errorf("failed to open '%s': %w", target, err)
	}
	cached := e.cache.Put(s)
	if cached != feather.Session(s) {
		s.Close()
	}
	return r.ReselectOn(cached)
}

func (e *Environment) NewTransfer(source, destination feather.Resource, opts ...feather.TransferOption) (*feather.ProxyTransfer, error) {
	return feather.NewProxyTransfer(source, destination, append(e.config.TransferOptions(e.logger), opts...)...)
}

func (e *Environment) Watch(ctx context.Context, transfer feather.Transfer, writer io.Writer) error {
	return e.watch(ctx, transfer, writer)
}

// Close closes every session opened through Resolve.
func (e *Environment) Close(ctx context.Context) error {
	_, err := e.cache.Close().Await(ctx)
	return err
}

// WatchLines starts the transfer and prints its progress every interval.
func WatchLines(interval time.Duration) WatchFunc {
	return func(ctx context.Context, transfer feather.Transfer, writer io.Writer) error {
		done, err := transfer.Start()
		if err != nil {
			return err
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done.Done():
				_, err := done.Await(ctx)
				return err
			case <-ticker.C:
				fmt.Fprintf(writer, "%s  %s/s\n", transfer.Progress(), FormatSize(int64(transfer.Throughput().Instantaneous())))
			case <-ctx.Done():
				transfer.Stop()
				<-done.Done()
				return ctx.Err()
			}
		}
	}
}

// FormatSize renders a byte count with a binary unit.
func FormatSize(size int64) string {
	return humanize.IBytes(uint64(max(size, 0)))
}
