// duel2048 is a two-player, turn-based 2048 played between two terminals.
//
// Usage:
//
//	duel2048 host             - Wait for an opponent and play as the host
//	duel2048 join <url>       - Join a hosted game over websocket
//	duel2048 serve            - Start SSH server where sessions duel each other
//	duel2048 sim              - Run two headless peers and check they agree
//	duel2048 scores           - Show match history and best scores
//
// Global flags:
//
//	--config <path>     - Config file (default: ~/.duel2048/config.yaml)
//	--db <path>         - Database path (default: ~/.duel2048/duel.db)
//	--log-level <lvl>   - debug, info, warn or error
//	--log-file <path>   - Write logs to a file
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	flagConfig   string
	flagDBPath   string
	flagLogLevel string
	flagLogFile  string
	flagEnvFile  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "duel2048",
	Short: "2048 for two players, one board",
	Long: `duel2048 is a turn-based 2048 for two players sharing one board.

Players alternate moves. Every tile belongs to the player it was dealt to or
who merged it, and a player's score is the sum of the tiles they own. Both
peers compute the game independently and agree on each new tile by mixing
a random seed from each side.

Available commands:
  host     - Wait for an opponent on a websocket
  join     - Join a hosted game
  serve    - Start SSH server with a lobby
  sim      - Play two headless peers against each other
  scores   - View match history

Examples:
  duel2048 host --listen :8048
  duel2048 join ws://example.com:8048/duel
  duel2048 serve --ssh :2048
  duel2048 sim --games 10
  duel2048 scores`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setup(cmd)
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		teardown()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config YAML")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Path to match database (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "Write logs to this file")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "Load environment variables from this file if it exists")

	// Add subcommands
	rootCmd.AddCommand(hostCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(simCmd)
	rootCmd.AddCommand(scoresCmd)
}
