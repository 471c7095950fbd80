package tui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mwantia/feather"
)

// Watch starts transfer and shows its progress until it ends. It matches
// cmd.WatchFunc.
func Watch(ctx context.Context, transfer feather.Transfer, writer io.Writer) error {
	done, err := transfer.Start()
	if err != nil {
		return err
	}

	model := NewModel(transfer, done)
	program := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(writer))
	if _, err := program.Run(); err != nil {
		// The view failed or ctx ended; the transfer must not outlive it
		transfer.Stop()
	}

	<-done.Done()
	return done.Err()
}
