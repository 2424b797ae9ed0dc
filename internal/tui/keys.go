package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the TUI
type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	NextPanel key.Binding
	Metric    key.Binding
	Scope     key.Binding
	Refresh   key.Binding
	Help      key.Binding
	Quit      key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		NextPanel: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch panel"),
		),
		Metric: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "time/count/badge"),
		),
		Scope: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "month/year"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns a short help message
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextPanel, k.Metric, k.Scope, k.Help, k.Quit}
}

// FullHelp returns the full help message
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.NextPanel},
		{k.Metric, k.Scope, k.Refresh},
		{k.Help, k.Quit},
	}
}
