package ui

import (
	"github.com/charmbracelet/bubbles/key"
)

// keyMap defines the key bindings for the watch view.
type keyMap struct {
	trigger key.Binding
	refresh key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		trigger: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "trigger cycle"),
		),
		refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the key bindings shown in the help line.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.trigger, k.refresh, k.quit}
}

// FullHelp returns all key bindings.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.trigger, k.refresh, k.quit}}
}
