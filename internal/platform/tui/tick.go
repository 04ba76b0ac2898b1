// Package tui provides the Bubble Tea front end for duels: the game screen,
// the SSH lobby and the Wish server that hosts both.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// statusTTL is how long transient status notes stay on screen.
const statusTTL = 3 * time.Second

// clearStatusMsg clears the status note it was issued for. Newer notes bump
// the sequence so an old timer never clears them.
type clearStatusMsg struct{ seq int }

func clearStatusAfter(d time.Duration, seq int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearStatusMsg{seq: seq}
	})
}
