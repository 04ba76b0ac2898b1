package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/duel2048/internal/duel"
	"github.com/vovakirdan/duel2048/internal/multiplayer"
	"github.com/vovakirdan/duel2048/internal/transport"
)

var (
	flagSimGames    int
	flagSimSize     int
	flagSimSeed     uint64
	flagSimMaxTurns uint64
)

var errDiverged = errors.New("peers diverged")

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Play two headless peers against each other",
	Long: `Run games between two in-process peers that play random legal moves and
check that both sides settle every turn to the same board and scores.

Examples:
  duel2048 sim
  duel2048 sim --games 100 --size 3
  duel2048 sim --seed 42 --max-turns 200`,
	Args: cobra.NoArgs,
	RunE: runSim,
}

func init() {
	simCmd.Flags().IntVar(&flagSimGames, "games", 1, "Number of games to play")
	simCmd.Flags().IntVar(&flagSimSize, "size", 0, "Board size (default from config)")
	simCmd.Flags().Uint64Var(&flagSimSeed, "seed", 0, "Random seed (random if 0)")
	simCmd.Flags().Uint64Var(&flagSimMaxTurns, "max-turns", 0, "Stop a game after this many turns (0 = play to the end)")
}

// simSide records what one peer saw settle.
type simSide struct {
	grids  map[uint64]duel.SerializedGrid
	scores map[uint64][]int
	reason multiplayer.EndReason
}

func runSim(cmd *cobra.Command, _ []string) error {
	if flagSimGames < 1 {
		return errors.New("--games must be at least 1")
	}
	seed := flagSimSeed
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // simulation seed
	}
	fmt.Printf("Simulating %d game(s), seed %d\n", flagSimGames, seed)

	diverged := 0
	for i := range flagSimGames {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		err := simGame(cmd.Context(), i+1, seed+uint64(i)) //nolint:gosec // i is non-negative
		if errors.Is(err, errDiverged) {
			diverged++
			fmt.Printf("  game %d: %v\n", i+1, err)
			continue
		}
		if err != nil {
			return err
		}
	}

	fmt.Println()
	if diverged > 0 {
		return fmt.Errorf("%d of %d games diverged", diverged, flagSimGames)
	}
	fmt.Printf("All %d games agreed.\n", flagSimGames)
	return nil
}

func simGame(ctx context.Context, n int, seed uint64) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := gameOptions()
	if flagSimSize > 0 {
		opts.Size = flagSimSize
	}
	opts.RoomID = fmt.Sprintf("sim-%d", n)

	hostConn, joinConn := transport.Pipe()
	defer hostConn.Close()

	newPeer := func(conn transport.Conn, host bool, stream uint64) *multiplayer.Peer {
		cfg := multiplayer.DefaultPeerConfig()
		cfg.Game = opts
		cfg.Game.Rand = rand.New(rand.NewPCG(seed, stream)) //nolint:gosec // reproducible games
		cfg.Host = host
		cfg.SeedTimeout = app.cfg.Sync.SeedTimeout
		cfg.MaxResends = app.cfg.Sync.MaxResends
		cfg.Logger = app.logger.With("room", opts.RoomID, "host", host)
		return multiplayer.NewPeer(conn, cfg)
	}
	host := newPeer(hostConn, true, 1)
	joiner := newPeer(joinConn, false, 2)

	hostErr := make(chan error, 1)
	joinErr := make(chan error, 1)
	go func() { hostErr <- host.Run(ctx) }()
	go func() { joinErr <- joiner.Run(ctx) }()

	play := func(p *multiplayer.Peer, stream uint64) <-chan simSide {
		done := make(chan simSide, 1)
		side := simSide{grids: map[uint64]duel.SerializedGrid{}, scores: map[uint64][]int{}}
		rnd := rand.New(rand.NewPCG(seed, stream)) //nolint:gosec // reproducible games
		go func() {
			side.reason = multiplayer.Autoplay(ctx, p, rnd, func(evt multiplayer.Event) {
				a, ok := evt.(multiplayer.ActuationEvent)
				if !ok || a.Pending || len(a.Grid.Cells) == 0 {
					return
				}
				side.grids[a.Turn] = a.Grid
				side.scores[a.Turn] = a.Scores
				if flagSimMaxTurns > 0 && a.Turn >= flagSimMaxTurns {
					cancel()
				}
			})
			done <- side
		}()
		return done
	}

	start := time.Now()
	hostDone, joinDone := play(host, 3), play(joiner, 4)
	hostSide, joinSide := <-hostDone, <-joinDone
	cancel()
	if err := firstError(<-hostErr, <-joinErr); err != nil {
		return fmt.Errorf("game %d: %w", n, err)
	}

	for turn, g := range hostSide.grids {
		other, ok := joinSide.grids[turn]
		if !ok {
			continue
		}
		if !gridsEqual(g, other) {
			return fmt.Errorf("%w: board differs at turn %d", errDiverged, turn)
		}
		if !slices.Equal(hostSide.scores[turn], joinSide.scores[turn]) {
			return fmt.Errorf("%w: scores differ at turn %d", errDiverged, turn)
		}
	}
	if hostSide.reason == multiplayer.EndReasonOver && joinSide.reason == multiplayer.EndReasonOver &&
		!host.Manager().Grid().Equal(joiner.Manager().Grid()) {
		return fmt.Errorf("%w: final boards differ", errDiverged)
	}

	r := host.Result(hostSide.reason)
	fmt.Printf("  game %d: %-14s scores %v  winners %v  max tile %-5d turns %-5d %s\n",
		n, r.Reason, r.Scores, r.Winners, r.MaxTile, r.Turns, time.Since(start).Round(time.Millisecond))
	return nil
}

func gridsEqual(a, b duel.SerializedGrid) bool {
	ga, gb := duel.NewGrid(a.Size), duel.NewGrid(b.Size)
	if ga.Deserialize(a, duel.Players) != nil || gb.Deserialize(b, duel.Players) != nil {
		return false
	}
	return ga.Equal(gb)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
