package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

// Theme holds the styles of the progress view
type Theme struct {
	TitleStyle   lipgloss.Style
	LabelStyle   lipgloss.Style
	ValueStyle   lipgloss.Style
	SuccessStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
	MutedStyle   lipgloss.Style
}

func DefaultTheme() *Theme {
	return &Theme{
		TitleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1),
		LabelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A0A0A0")).
			Width(12),
		ValueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")),
		SuccessStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#04B575")),
		ErrorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")),
		MutedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")),
	}
}

// KeyMap defines the key bindings of the progress view
type KeyMap struct {
	Stop key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Stop: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "stop transfer"),
		),
	}
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Stop}
}

// FullHelp returns keybindings for the expanded help view
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Stop}}
}
