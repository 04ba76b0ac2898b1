package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/vovakirdan/duel2048/internal/multiplayer"
	"github.com/vovakirdan/duel2048/internal/transport"
)

// LobbyState is the current step of the SSH session flow.
type LobbyState int

const (
	LobbyStateChooseMode    LobbyState = iota // Choose Host or Join
	LobbyStateHostWaiting                     // Hosting, waiting for joiner
	LobbyStateJoinEnterCode                   // Entering join code
	LobbyStatePlaying                         // In a duel
)

// linkMsg delivers a connected link from the lobby.
type linkMsg struct {
	conn transport.Conn
	host bool
	code string
}

// inviteExpiredMsg reports that nobody joined the hosted room in time.
type inviteExpiredMsg struct{}

// SessionModel drives one SSH session: pick host or join in the lobby, then
// play the duel.
type SessionModel struct {
	ctx       context.Context
	lobby     *multiplayer.Lobby
	sessionID multiplayer.SessionID
	peerCfg   PeerFactory
	logger    *log.Logger

	state  LobbyState
	keys   LobbyKeyMap
	help   help.Model
	input  textinput.Model
	invite *multiplayer.Invite
	err    string

	game     *Model
	width    int
	height   int
	quitting bool
}

// PeerFactory returns the peer configuration for a new duel. host tells
// which side the session plays and roomID is the lobby code.
type PeerFactory func(host bool, roomID string) multiplayer.PeerConfig

// NewSessionModel creates a session model. ctx bounds the session; peers
// started by the model stop when it is cancelled.
func NewSessionModel(ctx context.Context, lobby *multiplayer.Lobby, sessionID multiplayer.SessionID, peers PeerFactory, logger *log.Logger) SessionModel {
	input := textinput.New()
	input.Placeholder = "ABC123"
	input.CharLimit = 6
	input.Width = 8
	input.Prompt = "> "

	if logger == nil {
		logger = log.Default()
	}
	return SessionModel{
		ctx:       ctx,
		lobby:     lobby,
		sessionID: sessionID,
		peerCfg:   peers,
		logger:    logger,
		keys:      DefaultLobbyKeyMap(),
		help:      help.New(),
		input:     input,
	}
}

// Init initializes the session.
func (m SessionModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the session.
func (m SessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if wsm, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = wsm.Width
		m.height = wsm.Height
		m.help.Width = wsm.Width
	}

	if m.state == LobbyStatePlaying && m.game != nil {
		return m.updateGame(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case linkMsg:
		return m.startGame(msg)
	case inviteExpiredMsg:
		m.invite = nil
		m.state = LobbyStateChooseMode
		m.err = "Nobody joined in time"
		return m, nil
	}

	if m.state == LobbyStateJoinEnterCode {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m SessionModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.lobby.Cancel(m.sessionID)
		m.quitting = true
		return m, tea.Quit
	}

	switch m.state {
	case LobbyStateChooseMode:
		switch {
		case key.Matches(msg, m.keys.Host):
			inv, err := m.lobby.Host(m.sessionID)
			if err != nil {
				m.err = err.Error()
				return m, nil
			}
			m.invite = inv
			m.err = ""
			m.state = LobbyStateHostWaiting
			return m, waitForLink(inv)
		case key.Matches(msg, m.keys.Join):
			m.state = LobbyStateJoinEnterCode
			m.err = ""
			m.input.Reset()
			return m, m.input.Focus()
		case msg.String() == "q":
			m.quitting = true
			return m, tea.Quit
		}

	case LobbyStateHostWaiting:
		if key.Matches(msg, m.keys.Back) {
			m.lobby.Cancel(m.sessionID)
			m.invite = nil
			m.state = LobbyStateChooseMode
		}

	case LobbyStateJoinEnterCode:
		switch {
		case key.Matches(msg, m.keys.Back):
			m.input.Blur()
			m.state = LobbyStateChooseMode
			return m, nil
		case key.Matches(msg, m.keys.Confirm):
			code := strings.ToUpper(strings.TrimSpace(m.input.Value()))
			conn, err := m.lobby.Join(m.sessionID, code)
			if err != nil {
				m.err = err.Error()
				return m, nil
			}
			return m.startGame(linkMsg{conn: conn, code: code})
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	return m, nil
}

// waitForLink waits for a joiner or the room's expiry.
func waitForLink(inv *multiplayer.Invite) tea.Cmd {
	return func() tea.Msg {
		select {
		case conn := <-inv.Conn:
			return linkMsg{conn: conn, host: true, code: inv.Code}
		case <-inv.Expired:
			return inviteExpiredMsg{}
		}
	}
}

func (m SessionModel) startGame(link linkMsg) (tea.Model, tea.Cmd) {
	peer := multiplayer.NewPeer(link.conn, m.peerCfg(link.host, link.code))
	go func() {
		if err := peer.Run(m.ctx); err != nil {
			m.logger.Info("duel ended", "session", m.sessionID, "room", link.code, "error", err)
		}
		_ = link.conn.Close()
	}()

	game := NewModel(peer)
	game.width, game.height = m.width, m.height
	game.help.Width = m.width
	m.game = &game
	m.state = LobbyStatePlaying
	m.input.Blur()
	return m, game.Init()
}

// updateGame handles updates while playing.
func (m SessionModel) updateGame(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.game.Update(msg)
	if g, ok := next.(Model); ok {
		m.game = &g
	}
	if m.game.quitting {
		m.quitting = true
	}
	return m, cmd
}

// View renders the current view.
func (m SessionModel) View() string {
	if m.quitting {
		return ""
	}
	if m.state == LobbyStatePlaying && m.game != nil {
		return m.game.View()
	}

	var lines []string
	switch m.state {
	case LobbyStateChooseMode:
		lines = []string{
			titleStyle.Render("2048 DUEL"),
			"",
			"[H] Host a game",
			"[J] Join a game",
			"",
			dimStyle.Render("q: quit"),
		}
	case LobbyStateHostWaiting:
		lines = []string{
			titleStyle.Render("HOSTING GAME"),
			"",
			"Share this code with your opponent:",
			"",
			RenderBanner(m.invite.Code),
			"",
			"Waiting for player to join...",
			"",
			dimStyle.Render(m.help.ShortHelpView([]key.Binding{m.keys.Back, m.keys.Quit})),
		}
	case LobbyStateJoinEnterCode:
		lines = []string{
			titleStyle.Render("JOIN GAME"),
			"",
			"Enter the game code:",
			"",
			m.input.View(),
			"",
			dimStyle.Render(m.help.ShortHelpView([]key.Binding{m.keys.Confirm, m.keys.Back, m.keys.Quit})),
		}
	}
	if m.err != "" {
		lines = append(lines, "", errorStyle.Render("Error: "+m.err))
	}

	view := lipgloss.JoinVertical(lipgloss.Center, lines...)
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, view)
	}
	return view
}

// State returns the current lobby state.
func (m SessionModel) State() LobbyState {
	return m.state
}
