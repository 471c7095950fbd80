package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mwantia/feather"
	"github.com/mwantia/feather/data"
	"github.com/mwantia/feather/path"
	"github.com/mwantia/feather/promise"
)

type fakeTransfer struct {
	progress   feather.Progress
	throughput *feather.Throughput
	done       *promise.Promise[struct{}]
	failures   []feather.Failure
	stopped    bool
}

func newFakeTransfer() *fakeTransfer {
	return &fakeTransfer{
		throughput: feather.NewThroughput(nil),
		done:       promise.New[struct{}](),
	}
}

func (f *fakeTransfer) ID() string                    { return "fake" }
func (f *fakeTransfer) Source() feather.Resource      { return feather.Resource{} }
func (f *fakeTransfer) Destination() feather.Resource { return feather.Resource{} }
func (f *fakeTransfer) Start() (*promise.Promise[struct{}], error) {
	return f.done, nil
}
func (f *fakeTransfer) Stop() {
	f.stopped = true
	f.done.Cancel()
}
func (f *fakeTransfer) OnStart() *promise.Promise[struct{}] { return promise.Resolved(struct{}{}) }
func (f *fakeTransfer) OnStop() *promise.Promise[struct{}]  { return f.done }
func (f *fakeTransfer) Progress() *feather.Progress         { return &f.progress }
func (f *fakeTransfer) Throughput() *feather.Throughput     { return f.throughput }
func (f *fakeTransfer) Failures() []feather.Failure         { return f.failures }

func TestModel_Progress(t *testing.T) {
	transfer := newFakeTransfer()
	transfer.progress.AddTotal(400)
	transfer.progress.Add(100)

	m := NewModel(transfer, transfer.done)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	if _, cmd := m.Update(tickMsg{}); cmd == nil {
		t.Errorf("Expected tick to schedule the next sample")
	}

	if m.percent != 0.25 {
		t.Errorf("Expected 25%% sampled, got %f", m.percent)
	}
	if view := m.View(); !strings.Contains(view, "Transferring") || !strings.Contains(view, "100 B of 400 B") {
		t.Errorf("Unexpected view:\n%s", view)
	}
}

func TestModel_Stop(t *testing.T) {
	transfer := newFakeTransfer()
	m := NewModel(transfer, transfer.done)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !transfer.stopped {
		t.Fatalf("Expected key to stop the transfer")
	}
	if !strings.Contains(m.View(), "Stopping") {
		t.Errorf("Expected stopping status")
	}

	if _, cmd := m.Update(doneMsg{err: transfer.done.Err()}); cmd == nil {
		t.Errorf("Expected done to quit")
	}
	if !data.IsCanceled(m.Err()) || !strings.Contains(m.View(), "Stopped") {
		t.Errorf("Expected stopped outcome, got %v", m.Err())
	}
}

func TestModel_Failures(t *testing.T) {
	transfer := newFakeTransfer()
	for range maxFailures + 2 {
		transfer.failures = append(transfer.failures, feather.Failure{Path: path.MustParse("bad"), Err: data.ErrNotExist})
	}

	m := NewModel(transfer, transfer.done)
	failed := &feather.TransferError{Failures: transfer.failures}
	m.Update(doneMsg{err: failed})

	view := m.View()
	if !strings.Contains(view, "7 failed") || !strings.Contains(view, "and 2 more") {
		t.Errorf("Unexpected failure listing:\n%s", view)
	}
	if !errors.Is(m.Err(), data.ErrNotExist) {
		t.Errorf("Expected transfer error, got %v", m.Err())
	}
}
