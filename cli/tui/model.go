package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mwantia/feather"
	"github.com/mwantia/feather/promise"
)

// RefreshInterval is how often the view samples the transfer.
const RefreshInterval = 200 * time.Millisecond

type tickMsg time.Time

type doneMsg struct {
	err error
}

// failureLister is implemented by transfers that keep their failures.
type failureLister interface {
	Failures() []feather.Failure
}

// Model renders the progress of a single running transfer
type Model struct {
	transfer feather.Transfer
	done     *promise.Promise[struct{}]

	theme    *Theme
	keys     KeyMap
	help     help.Model
	progress progress.Model
	spinner  spinner.Model

	width    int
	percent  float64
	failures []feather.Failure

	stopping bool
	finished bool
	err      error
}

// NewModel creates a view of transfer; done is the promise returned by its
// Start.
func NewModel(transfer feather.Transfer, done *promise.Promise[struct{}]) *Model {
	theme := DefaultTheme()

	return &Model{
		transfer: transfer,
		done:     done,
		theme:    theme,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(theme.SuccessStyle)),
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tick(),
		wait(m.done),
	)
}

// Update handles messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.progress.Width = max(10, min(60, msg.Width-20))
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Stop) && !m.stopping {
			m.stopping = true
			m.transfer.Stop()
		}
		return m, nil

	case tickMsg:
		m.sample()
		return m, tick()

	case doneMsg:
		m.sample()
		m.finished = true
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// Err returns the outcome of the transfer once the view finished.
func (m *Model) Err() error {
	return m.err
}

func (m *Model) sample() {
	m.percent = m.transfer.Progress().Percent() / 100
	if lister, ok := m.transfer.(failureLister); ok {
		m.failures = lister.Failures()
	}
}

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func wait(done *promise.Promise[struct{}]) tea.Cmd {
	return func() tea.Msg {
		<-done.Done()
		return doneMsg{err: done.Err()}
	}
}
