package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/duel2048/internal/duel"
)

// KeyMap defines the key bindings for a duel.
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	Left        key.Binding
	Right       key.Binding
	KeepPlaying key.Binding
	Restart     key.Binding
	Help        key.Binding
	Quit        key.Binding
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Left, k.Right, k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.KeepPlaying, k.Restart},
		{k.Help, k.Quit},
	}
}

// DefaultKeyMap returns arrow, WASD and vim bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "w", "k"),
			key.WithHelp("↑/w", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "s", "j"),
			key.WithHelp("↓/s", "down"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "a", "h"),
			key.WithHelp("←/a", "left"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "d", "l"),
			key.WithHelp("→/d", "right"),
		),
		KeepPlaying: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "keep playing"),
		),
		Restart: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "new game"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// Direction maps a key press to a move direction.
func (k KeyMap) Direction(msg tea.KeyMsg) (duel.Direction, bool) {
	switch {
	case key.Matches(msg, k.Up):
		return duel.DirUp, true
	case key.Matches(msg, k.Right):
		return duel.DirRight, true
	case key.Matches(msg, k.Down):
		return duel.DirDown, true
	case key.Matches(msg, k.Left):
		return duel.DirLeft, true
	}
	return 0, false
}

// LobbyKeyMap defines the key bindings for the SSH lobby screens.
type LobbyKeyMap struct {
	Host    key.Binding
	Join    key.Binding
	Confirm key.Binding
	Back    key.Binding
	Quit    key.Binding
}

// ShortHelp returns key bindings for the short help view.
func (k LobbyKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Host, k.Join, k.Confirm, k.Back, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k LobbyKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// DefaultLobbyKeyMap returns default lobby bindings.
func DefaultLobbyKeyMap() LobbyKeyMap {
	return LobbyKeyMap{
		Host: key.NewBinding(
			key.WithKeys("h", "1"),
			key.WithHelp("h", "host"),
		),
		Join: key.NewBinding(
			key.WithKeys("j", "2"),
			key.WithHelp("j", "join"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "connect"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}
