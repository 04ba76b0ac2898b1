package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/duel2048/internal/storage"
)

// Scoreboard layout constants
const (
	minWidthForSidebar = 80 // Minimum width to show the best scores sidebar
	sidebarWidth       = 22
	maxMatches         = 100 // Max matches to load
)

// ScoreboardKeyMap defines the key bindings for the scoreboard.
type ScoreboardKeyMap struct {
	Up   key.Binding
	Down key.Binding
	Quit key.Binding
}

// ShortHelp returns key bindings for the short help view.
func (k ScoreboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k ScoreboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// DefaultScoreboardKeyMap returns default key bindings.
func DefaultScoreboardKeyMap() ScoreboardKeyMap {
	return ScoreboardKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "scroll down"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ScoreboardData is what the scoreboard shows.
type ScoreboardData struct {
	Matches []storage.MatchRecord
	Best    map[string]int
	Stats   *storage.Stats
}

// LoadScoreboard reads scoreboard data from store.
func LoadScoreboard(ctx context.Context, store *storage.Store) (ScoreboardData, error) {
	matches, err := store.RecentMatches(ctx, maxMatches)
	if err != nil {
		return ScoreboardData{}, err
	}
	best, err := store.BestScores(ctx)
	if err != nil {
		return ScoreboardData{}, err
	}
	stats, err := store.GetStats(ctx)
	if err != nil {
		return ScoreboardData{}, err
	}
	return ScoreboardData{Matches: matches, Best: best, Stats: stats}, nil
}

// ScoreboardModel is the Bubble Tea model for the match history screen.
type ScoreboardModel struct {
	data        ScoreboardData
	table       table.Model
	help        help.Model
	keys        ScoreboardKeyMap
	width       int
	height      int
	quitting    bool
	showSidebar bool
}

// NewScoreboardModel creates a new scoreboard model.
func NewScoreboardModel(data ScoreboardData, width, height int) ScoreboardModel {
	m := ScoreboardModel{
		data:        data,
		keys:        DefaultScoreboardKeyMap(),
		help:        help.New(),
		width:       width,
		height:      height,
		showSidebar: width >= minWidthForSidebar,
	}
	m.table = m.createTable()
	m.updateTableRows()
	return m
}

// createTable creates a new table sized to the window.
func (m *ScoreboardModel) createTable() table.Model {
	columns := []table.Column{
		{Title: "Date", Width: 13},
		{Title: "Room", Width: 7},
		{Title: "You", Width: 6},
		{Title: "Them", Width: 6},
		{Title: "Tile", Width: 6},
		{Title: "Result", Width: 22},
	}

	height := m.height - 8 // Leave room for header, help, and margins
	if height < 3 {
		height = 3
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t
}

// MatchRow formats one stored match for the table.
func MatchRow(r storage.MatchRecord) table.Row {
	own, other := r.Scores[0], r.Scores[1]
	if r.Player == 1 {
		own, other = other, own
	}

	outcome := r.EndReason
	switch {
	case r.EndReason != "over" && r.EndReason != "won":
	case len(r.Winners) > 1:
		outcome = "tie"
	case r.Won():
		outcome = "won"
	default:
		outcome = "lost"
	}

	return table.Row{
		r.CreatedAt.Format("Jan 02 15:04"),
		r.RoomID,
		fmt.Sprintf("%d", own),
		fmt.Sprintf("%d", other),
		fmt.Sprintf("%d", r.MaxTile),
		outcome,
	}
}

func (m *ScoreboardModel) updateTableRows() {
	rows := make([]table.Row, len(m.data.Matches))
	for i, r := range m.data.Matches {
		rows[i] = MatchRow(r)
	}
	m.table.SetRows(rows)
	m.table.GotoTop()
}

// Init initializes the scoreboard model.
func (m ScoreboardModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the scoreboard.
func (m ScoreboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.showSidebar = m.width >= minWidthForSidebar
		m.table = m.createTable()
		m.updateTableRows()
		m.help.Width = msg.Width
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the scoreboard.
func (m ScoreboardModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("MATCH HISTORY"))
	b.WriteString("\n")
	if s := m.data.Stats; s != nil {
		b.WriteString(dimStyle.Render(fmt.Sprintf("%d games, %d won, high score %d, best tile %d",
			s.Games, s.Wins, s.HighScore, s.BestTile)))
	}
	b.WriteString("\n\n")

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)
	history := boxStyle.Render(m.renderTableContent())

	if m.showSidebar {
		sidebar := boxStyle.Width(sidebarWidth).Render(m.renderBest())
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, sidebar, "  ", history))
	} else {
		b.WriteString(history)
	}

	b.WriteString("\n")
	if detail := m.renderDetail(); detail != "" {
		b.WriteString(detail)
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render(m.help.View(m.keys)))
	return b.String()
}

// renderDetail describes the highlighted match.
func (m ScoreboardModel) renderDetail() string {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.data.Matches) {
		return ""
	}
	r := m.data.Matches[i]
	winners := make([]string, len(r.Winners))
	for j, w := range r.Winners {
		winners[j] = PlayerLabel(w, r.Player)
	}
	if len(winners) == 0 {
		winners = append(winners, "-")
	}
	return dimStyle.Render(fmt.Sprintf("%s  %d turns in %s  winners: %s  ended: %s",
		r.MatchID, r.Turns, time.Duration(r.Duration)*time.Second, strings.Join(winners, ", "), r.EndReason))
}

func (m ScoreboardModel) renderBest() string {
	var b strings.Builder
	b.WriteString("Best scores\n")
	b.WriteString(strings.Repeat("-", sidebarWidth-4))
	b.WriteString("\n")

	boards := make([]string, 0, len(m.data.Best))
	for board := range m.data.Best {
		boards = append(boards, board)
	}
	sort.Strings(boards)
	for _, board := range boards {
		fmt.Fprintf(&b, "%-10s %d\n", board, m.data.Best[board])
	}
	if len(boards) == 0 {
		b.WriteString(dimStyle.Render("none yet"))
	}
	return b.String()
}

// renderTableContent renders the table or empty message.
func (m ScoreboardModel) renderTableContent() string {
	if len(m.data.Matches) == 0 {
		emptyStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true).
			Padding(2, 4)
		return emptyStyle.Render("No matches recorded yet.\nHost or join a duel to start!")
	}
	return m.table.View()
}

// RunScoreboard runs the scoreboard screen.
func RunScoreboard(data ScoreboardData, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(NewScoreboardModel(data, 0, 0), append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
	_, err := p.Run()
	return err
}
