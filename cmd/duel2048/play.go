package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/duel2048/internal/multiplayer"
	"github.com/vovakirdan/duel2048/internal/platform/tui"
	"github.com/vovakirdan/duel2048/internal/storage"
	"github.com/vovakirdan/duel2048/internal/transport"
)

var (
	flagListen string
	flagPath   string
	flagRoom   string
	flagResume bool
	flagAuto   bool
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Host a duel and wait for an opponent",
	Long: `Listen for one opponent on a websocket and play as the host.

The host deals the first board and moves first. With --resume the saved game
for --room continues where it stopped; the opponent receives the board on
connect.

Controls:
  Arrows/WASD/HJKL  - Move
  C                 - Keep playing after the win tile
  R                 - New game (after game over)
  Q/Ctrl+C          - Quit

Examples:
  duel2048 host
  duel2048 host --listen :9000 --room FRIDAY
  duel2048 host --room FRIDAY --resume
  duel2048 host --auto          # play random moves without a TUI`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{interactiveAnnotation: "true"},
	RunE:        runHost,
}

var joinCmd = &cobra.Command{
	Use:   "join <url>",
	Short: "Join a hosted duel",
	Long: `Connect to a host started with 'duel2048 host' and play second.

Examples:
  duel2048 join ws://localhost:8048/duel
  duel2048 join ws://example.com:8048/duel --auto`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{interactiveAnnotation: "true"},
	RunE:        runJoin,
}

func init() {
	hostCmd.Flags().StringVar(&flagListen, "listen", "", "Websocket listen address (default from config)")
	hostCmd.Flags().StringVar(&flagPath, "path", "", "Websocket path (default from config)")
	hostCmd.Flags().StringVar(&flagRoom, "room", "", "Room name used to save and resume the game (random if empty)")
	hostCmd.Flags().BoolVar(&flagResume, "resume", false, "Continue the saved game for --room")
	hostCmd.Flags().BoolVar(&flagAuto, "auto", false, "Play random legal moves without a TUI")

	joinCmd.Flags().StringVar(&flagRoom, "room", "", "Room name recorded with results (defaults to the host address)")
	joinCmd.Flags().BoolVar(&flagAuto, "auto", false, "Play random legal moves without a TUI")
}

func runHost(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagResume && flagRoom == "" {
		return errors.New("--resume needs --room")
	}
	room := flagRoom
	if room == "" {
		room = multiplayer.GenerateJoinCode()
	}
	listen := firstNonEmpty(flagListen, app.cfg.Network.Listen)
	path := firstNonEmpty(flagPath, app.cfg.Network.Path)

	store, states := openPersistence(ctx)

	listener := transport.NewListener(transport.Options{
		PingInterval: app.cfg.Network.PingInterval,
		Logger:       app.logger,
	})
	serveCtx, stopServe := context.WithCancelCause(ctx)
	defer stopServe(nil)
	go func() {
		err := transport.Serve(serveCtx, listen, path, listener)
		if err != nil {
			app.logger.Error("websocket server stopped", "error", err)
		}
		stopServe(err)
	}()

	fmt.Printf("Hosting room %s on %s%s\n", room, listen, path)
	fmt.Println("Waiting for an opponent... (Ctrl+C to cancel)")

	conn, err := listener.Accept(serveCtx)
	if err != nil {
		if cause := context.Cause(serveCtx); cause != nil && !errors.Is(cause, context.Canceled) {
			return cause
		}
		return nil
	}
	defer conn.Close()
	app.logger.Info("opponent connected", "room", room, "remote", conn.RemoteAddr())

	cfg := peerConfig(ctx, true, room, store, states)
	cfg.Resume = flagResume
	return play(ctx, multiplayer.NewPeer(conn, cfg))
}

func runJoin(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	url := args[0]
	conn, err := transport.Dial(ctx, url, transport.Options{
		PingInterval: app.cfg.Network.PingInterval,
		Logger:       app.logger,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	room := firstNonEmpty(flagRoom, conn.RemoteAddr().String())
	store, _ := openPersistence(ctx)
	// the host keeps saved games; the joiner only records results
	cfg := peerConfig(ctx, false, room, store, nil)
	return play(ctx, multiplayer.NewPeer(conn, cfg))
}

// openPersistence opens the match database and the saved game store. Play
// continues without them if they are unavailable.
func openPersistence(ctx context.Context) (*storage.Store, multiplayer.StateStore) {
	store, err := openStore()
	if err != nil {
		app.logger.Warn("match database unavailable, results will not be saved", "error", err)
		return nil, nil
	}
	states, err := stateStore(ctx, store)
	if err != nil {
		app.logger.Warn("saved game store unavailable, using local database", "error", err)
		return store, store
	}
	return store, states
}

// play runs peer in the TUI, or headless with random moves when --auto is
// set or stdout is not a terminal.
func play(ctx context.Context, peer *multiplayer.Peer) error {
	var err error
	if !flagAuto && isTerminal() {
		err = tui.Run(ctx, peer)
	} else {
		err = playHeadless(ctx, peer)
	}

	if errors.Is(err, multiplayer.ErrPeerClosed) {
		fmt.Println("Opponent left the game.")
		return nil
	}
	return err
}

func playHeadless(ctx context.Context, peer *multiplayer.Peer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	peerErr := make(chan error, 1)
	go func() { peerErr <- peer.Run(ctx) }()

	rnd := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // move choice, not security
	reason := multiplayer.Autoplay(ctx, peer, rnd, func(evt multiplayer.Event) {
		switch evt := evt.(type) {
		case multiplayer.ActuationEvent:
			if !evt.Pending && !evt.Terminated {
				app.logger.Debug("turn settled", "turn", evt.Turn, "scores", evt.Scores)
			}
		case multiplayer.ResendEvent:
			app.logger.Warn("move resent", "turn", evt.Turn, "attempt", evt.Attempt)
		}
	})

	cancel()
	err := <-peerErr
	r := peer.Result(reason)
	fmt.Printf("%s: scores %v, winners %v, max tile %d after %d turns\n",
		r.Reason, r.Scores, r.Winners, r.MaxTile, r.Turns)
	return err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
