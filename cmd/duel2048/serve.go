package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/duel2048/internal/config"
	"github.com/vovakirdan/duel2048/internal/multiplayer"
	"github.com/vovakirdan/duel2048/internal/platform/tui"
)

var (
	flagSSHAddr string
	flagHostKey string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the duel SSH server",
	Long: `Start an SSH server where connected sessions play against each other.

One session hosts a room and shares its code; another session joins with the
code. Results and saved games are kept on the server.

Host key handling:
  - If --host-key is provided, uses that key file
  - Otherwise, auto-generates a key at ~/.duel2048/host_key

Examples:
  duel2048 serve                           # Listen on :2048 with auto-generated key
  duel2048 serve --ssh :2222               # Listen on port 2222
  duel2048 serve --host-key ./my_host_key  # Use specific host key

Users can connect with:
  ssh localhost -p 2048`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagSSHAddr, "ssh", "", "SSH server address (default from config)")
	serveCmd.Flags().StringVar(&flagHostKey, "host-key", "", "Path to host key file (auto-generated if not specified)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	nc := app.cfg.Network
	store, states := openPersistence(ctx)

	cfg := tui.DefaultSSHServerConfig()
	cfg.Address = firstNonEmpty(flagSSHAddr, nc.SSHAddr, cfg.Address)
	if hostKey := firstNonEmpty(flagHostKey, nc.HostKeyPath); hostKey != "" {
		cfg.HostKeyPath = config.ExpandHome(hostKey)
	}
	if nc.IdleTimeout > 0 {
		cfg.IdleTimeout = nc.IdleTimeout
	}
	cfg.Logger = app.logger
	cfg.Peers = peerConfig(ctx, true, "", store, states)

	lobbyCfg := multiplayer.DefaultLobbyConfig()
	if nc.LobbyTTL > 0 {
		lobbyCfg.RoomTimeout = nc.LobbyTTL
	}
	lobbyCfg.Logger = app.logger.With("component", "lobby")
	cfg.Lobby = multiplayer.NewLobby(lobbyCfg)

	server, err := tui.NewSSHServer(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Starting duel2048 SSH server on %s\n", server.Addr())
	fmt.Println("Press Ctrl+C to stop")

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
