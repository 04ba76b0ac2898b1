package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/duel2048/internal/duel"
)

const cellWidth = 6 // inner width of a board cell

// playerStyles colours tiles and scores by owner.
var playerStyles = [duel.Players]lipgloss.Style{
	lipgloss.NewStyle().Foreground(lipgloss.Color("51")),  // cyan
	lipgloss.NewStyle().Foreground(lipgloss.Color("205")), // pink
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	gridStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 2)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// PlayerLabel names player from the local player's point of view.
func PlayerLabel(player, local int) string {
	if player == local {
		return "You"
	}
	return "Opponent"
}

// RenderBoard draws the grid with tiles coloured by owner. Tiles merged by
// the last move are bold and the spawned tile is underlined.
func RenderBoard(a duel.Actuation) string {
	size := a.Grid.Size
	if size == 0 {
		return ""
	}

	merged := make(map[duel.Cell]bool, len(a.Merged))
	for _, c := range a.Merged {
		merged[c] = true
	}

	horizontal := func(left, mid, right string) string {
		segs := make([]string, size)
		for i := range segs {
			segs[i] = strings.Repeat("─", cellWidth)
		}
		return gridStyle.Render(left + strings.Join(segs, mid) + right)
	}

	var b strings.Builder
	b.WriteString(horizontal("┌", "┬", "┐"))
	b.WriteString("\n")

	bar := gridStyle.Render("│")
	for y := range size {
		b.WriteString(bar)
		for x := range size {
			b.WriteString(renderCell(a, duel.Cell{X: x, Y: y}, merged))
			b.WriteString(bar)
		}
		b.WriteString("\n")
		if y < size-1 {
			b.WriteString(horizontal("├", "┼", "┤"))
			b.WriteString("\n")
		}
	}
	b.WriteString(horizontal("└", "┴", "┘"))
	return b.String()
}

func renderCell(a duel.Actuation, c duel.Cell, merged map[duel.Cell]bool) string {
	var tile *duel.SerializedTile
	if c.X < len(a.Grid.Cells) && c.Y < len(a.Grid.Cells[c.X]) {
		tile = a.Grid.Cells[c.X][c.Y]
	}
	if tile == nil {
		return strings.Repeat(" ", cellWidth)
	}

	style := lipgloss.NewStyle()
	if tile.Owner >= 0 && tile.Owner < duel.Players {
		style = playerStyles[tile.Owner]
	}
	if merged[c] {
		style = style.Bold(true)
	}
	if a.Spawned != nil && *a.Spawned == c {
		style = style.Underline(true)
	}
	return style.Width(cellWidth).Align(lipgloss.Center).Render(strconv.Itoa(tile.Value))
}

// RenderScores draws both players' scores with the current player marked.
func RenderScores(a duel.Actuation) string {
	parts := make([]string, 0, duel.Players)
	for p := range duel.Players {
		score := 0
		if p < len(a.Scores) {
			score = a.Scores[p]
		}
		marker := "  "
		if !a.Terminated && a.CurrentPlayer == p {
			marker = "▶ "
		}
		label := fmt.Sprintf("%s%s: %d", marker, PlayerLabel(p, a.Player), score)
		parts = append(parts, playerStyles[p].Render(label))
	}
	return strings.Join(parts, "   ")
}

// RenderHUD draws the title line, the scores and the global totals.
func RenderHUD(a duel.Actuation) string {
	title := "2048 DUEL"
	if a.RoomID != "" {
		title += "  " + dimStyle.Render("room "+a.RoomID)
	}
	totals := dimStyle.Render(fmt.Sprintf("turn %d  total %d  best %d", a.Turn, a.Score, a.BestScore))
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(title),
		RenderScores(a),
		totals,
	)
}

// StatusText describes what the local player should do next.
func StatusText(a duel.Actuation) string {
	switch {
	case a.Grid.Size == 0 || len(a.Grid.Cells) == 0:
		return "Waiting for the host to deal..."
	case a.Over:
		return overText(a)
	case a.Won && a.Terminated:
		if a.IsWinner(a.Player) {
			return "You reached the win tile! Press c to keep playing"
		}
		return "Your opponent reached the win tile. Press c to keep playing"
	case a.Pending:
		return "Waiting for seed..."
	case a.MyTurn():
		return "Your move"
	default:
		return "Opponent's move"
	}
}

func overText(a duel.Actuation) string {
	switch {
	case len(a.Winners) > 1:
		return "Game over: it's a tie"
	case a.IsWinner(a.Player):
		return "Game over: you win!"
	default:
		return "Game over: you lose"
	}
}

// RenderBanner boxes a short message shown over the game.
func RenderBanner(lines ...string) string {
	return bannerStyle.Render(strings.Join(lines, "\n"))
}
