package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mwantia/feather/cmd"
	"github.com/mwantia/feather/data"
)

// maxFailures is the number of failures listed below the progress bar.
const maxFailures = 5

// View renders the TUI
func (m *Model) View() string {
	var sections []string

	sections = append(sections, m.renderTitle())
	sections = append(sections, m.renderProgress())
	sections = append(sections, m.renderStats())

	if len(m.failures) > 0 {
		sections = append(sections, m.renderFailures())
	}

	sections = append(sections, m.renderStatus())
	if !m.finished {
		sections = append(sections, m.help.View(m.keys))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (m *Model) renderTitle() string {
	title := fmt.Sprintf("feather %s -> %s", m.transfer.Source(), m.transfer.Destination())
	return m.theme.TitleStyle.Render(title)
}

func (m *Model) renderProgress() string {
	return m.progress.ViewAs(m.percent)
}

func (m *Model) renderStats() string {
	p := m.transfer.Progress()
	t := m.transfer.Throughput()

	rows := [][2]string{
		{"Copied", fmt.Sprintf("%s of %s", cmd.FormatSize(p.Done()), cmd.FormatSize(p.Total()))},
		{"Rate", fmt.Sprintf("%s/s (average %s/s)", cmd.FormatSize(int64(t.Instantaneous())), cmd.FormatSize(int64(t.Average())))},
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, m.theme.LabelStyle.Render(row[0])+m.theme.ValueStyle.Render(row[1]))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderFailures() string {
	lines := []string{m.theme.ErrorStyle.Render(fmt.Sprintf("%d failed", len(m.failures)))}
	for i, failure := range m.failures {
		if i == maxFailures {
			lines = append(lines, m.theme.MutedStyle.Render(fmt.Sprintf("  ... and %d more", len(m.failures)-maxFailures)))
			break
		}
		lines = append(lines, m.theme.ErrorStyle.Render("  "+failure.Error()))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderStatus() string {
	switch {
	case !m.finished && m.stopping:
		return m.spinner.View() + " Stopping..."
	case !m.finished:
		return m.spinner.View() + " Transferring..."
	case m.err == nil:
		return m.theme.SuccessStyle.Render("Done")
	case data.IsCanceled(m.err):
		return m.theme.MutedStyle.Render("Stopped")
	default:
		return m.theme.ErrorStyle.Render("Failed: " + m.err.Error())
	}
}
