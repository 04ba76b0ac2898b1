package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/duel2048/internal/platform/tui"
)

var (
	flagScoresLimit int
	flagScoresPlain bool
)

var scoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "Show match history and best scores",
	Long: `Display recent matches, the best score per board and overall stats.

On a terminal the history opens in an interactive table; use --plain to
print it instead.

Examples:
  duel2048 scores
  duel2048 scores --plain --limit 20`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{interactiveAnnotation: "true"},
	RunE:        runScores,
}

func init() {
	scoresCmd.Flags().IntVar(&flagScoresLimit, "limit", 10, "Number of matches to print with --plain (-1 for all)")
	scoresCmd.Flags().BoolVar(&flagScoresPlain, "plain", false, "Print instead of opening the table")
}

func runScores(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	store, err := openStore()
	if err != nil {
		return fmt.Errorf("cannot open match database: %w", err)
	}

	if !flagScoresPlain && isTerminal() {
		data, err := tui.LoadScoreboard(ctx, store)
		if err != nil {
			return err
		}
		return tui.RunScoreboard(data)
	}

	matches, err := store.RecentMatches(ctx, flagScoresLimit)
	if err != nil {
		return fmt.Errorf("cannot read matches: %w", err)
	}

	fmt.Println("Recent Matches")
	fmt.Println()
	if len(matches) == 0 {
		fmt.Println("No matches recorded yet.")
		fmt.Println()
		fmt.Println("Play 'duel2048 host' to start one!")
		return nil
	}

	fmt.Printf("  %-12s  %-16s  %-6s  %-6s  %-5s  %s\n", "Date", "Room", "You", "Them", "Tile", "Result")
	fmt.Printf("  %-12s  %-16s  %-6s  %-6s  %-5s  %s\n", "----", "----", "---", "----", "----", "------")
	for _, m := range matches {
		row := tui.MatchRow(m)
		fmt.Printf("  %-12s  %-16s  %-6s  %-6s  %-5s  %s\n", row[0], row[1], row[2], row[3], row[4], row[5])
	}

	best, err := store.BestScores(ctx)
	if err != nil {
		return fmt.Errorf("cannot read best scores: %w", err)
	}
	if len(best) > 0 {
		boards := make([]string, 0, len(best))
		for b := range best {
			boards = append(boards, b)
		}
		sort.Strings(boards)

		fmt.Println()
		fmt.Println("Best Scores")
		for _, b := range boards {
			fmt.Printf("  %-10s  %d\n", b, best[b])
		}
	}

	stats, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("cannot read stats: %w", err)
	}
	fmt.Println()
	fmt.Printf("Games: %d  Wins: %d  High score: %d  Best tile: %d\n",
		stats.Games, stats.Wins, stats.HighScore, stats.BestTile)
	if !stats.LastPlayed.IsZero() {
		fmt.Printf("Last played: %s\n", stats.LastPlayed.Format("2006-01-02 15:04"))
	}
	return nil
}
