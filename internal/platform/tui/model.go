package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/duel2048/internal/duel"
	"github.com/vovakirdan/duel2048/internal/multiplayer"
)

// Model is the Bubble Tea model for one side of a duel. It renders the
// peer's actuations and turns key presses into peer input.
type Model struct {
	peer *multiplayer.Peer
	keys KeyMap
	help help.Model

	last      duel.Actuation
	result    *multiplayer.MatchResult
	stopped   *multiplayer.PeerStoppedEvent
	status    string
	statusSeq int

	width    int
	height   int
	quitting bool
}

// NewModel creates a model reading events from peer. The peer must be
// running (or about to run) in its own goroutine.
func NewModel(peer *multiplayer.Peer) Model {
	return Model{
		peer: peer,
		keys: DefaultKeyMap(),
		help: help.New(),
	}
}

// Init starts listening for peer events.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.peer)
}

// waitForEvent returns a command that delivers the next peer event.
func waitForEvent(p *multiplayer.Peer) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-p.Events()
		if !ok {
			return nil
		}
		return evt
	}
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case multiplayer.ActuationEvent:
		m.last = msg.Actuation
		return m, waitForEvent(m.peer)

	case multiplayer.ResendEvent:
		cmd := m.setStatus(fmt.Sprintf("Opponent is slow, resent move (attempt %d)", msg.Attempt))
		return m, tea.Batch(cmd, waitForEvent(m.peer))

	case multiplayer.GameEndedEvent:
		result := msg.Result
		m.result = &result
		return m, waitForEvent(m.peer)

	case multiplayer.PeerStoppedEvent:
		m.stopped = &msg
		if msg.Reason == multiplayer.EndReasonQuit {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) setStatus(s string) tea.Cmd {
	m.statusSeq++
	m.status = s
	return clearStatusAfter(statusTTL, m.statusSeq)
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	// Nothing but quit and help once the link is gone
	if m.stopped != nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.KeepPlaying):
		if m.last.Won && m.last.Terminated && !m.last.Over {
			m.peer.KeepPlaying()
		}
		return m, nil
	case key.Matches(msg, m.keys.Restart):
		if m.last.Over {
			m.peer.Restart()
		}
		return m, nil
	}

	if dir, ok := m.keys.Direction(msg); ok {
		if !m.last.MyTurn() {
			return m, m.setStatus("Not your turn")
		}
		m.peer.Move(dir)
	}
	return m, nil
}

// View renders the current state to a string for display.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{RenderHUD(m.last), ""}
	if board := RenderBoard(m.last); board != "" {
		sections = append(sections, board, "")
	}
	sections = append(sections, StatusText(m.last))
	if m.status != "" {
		sections = append(sections, dimStyle.Render(m.status))
	}
	switch {
	case m.stopped != nil:
		sections = append(sections, "", RenderBanner(stoppedText(*m.stopped)...))
	case m.last.Over && m.result != nil:
		sections = append(sections, "", RenderBanner(resultText(*m.result)...))
	}
	sections = append(sections, "", dimStyle.Render(m.help.View(m.keys)))

	view := lipgloss.JoinVertical(lipgloss.Left, sections...)
	if m.width > 0 {
		view = lipgloss.PlaceHorizontal(m.width, lipgloss.Center, view)
	}
	return view
}

func stoppedText(evt multiplayer.PeerStoppedEvent) []string {
	lines := []string{evt.Reason.String()}
	if evt.Err != nil && !errors.Is(evt.Err, multiplayer.ErrPeerClosed) {
		lines = append(lines, errorStyle.Render(evt.Err.Error()))
	}
	return append(lines, "Press q to leave")
}

func resultText(r multiplayer.MatchResult) []string {
	lines := make([]string, 0, len(r.Scores)+2)
	for p, score := range r.Scores {
		lines = append(lines, playerStyles[p%duel.Players].Render(fmt.Sprintf("%s: %d", PlayerLabel(p, r.Player), score)))
	}
	lines = append(lines, fmt.Sprintf("max tile %d after %d turns", r.MaxTile, r.Turns))
	return append(lines, "Press r for a new game")
}

// Last returns the most recent actuation.
func (m Model) Last() duel.Actuation {
	return m.last
}

// Result returns the result of the last finished game, if any.
func (m Model) Result() *multiplayer.MatchResult {
	return m.result
}

// Run plays a duel in the terminal. It runs the peer until the player quits
// or the peer stops, and returns the peer's error.
func Run(ctx context.Context, peer *multiplayer.Peer, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	peerErr := make(chan error, 1)
	go func() { peerErr <- peer.Run(ctx) }()

	p := tea.NewProgram(NewModel(peer), append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
	_, err := p.Run()

	cancel()
	if perr := <-peerErr; perr != nil {
		return perr
	}
	return err
}
