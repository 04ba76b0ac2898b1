package multiplayer

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/duel2048/internal/duel"
	"github.com/vovakirdan/duel2048/internal/transport"
)

func TestLegalMoves(t *testing.T) {
	a := duel.Actuation{Grid: duel.SerializedGrid{Size: 2, Cells: [][]*duel.SerializedTile{
		{{Value: 2, Owner: 0}, nil},
		{nil, nil},
	}}}
	assert.ElementsMatch(t, []duel.Direction{duel.DirRight, duel.DirDown}, LegalMoves(a))

	full := duel.Actuation{Grid: duel.SerializedGrid{Size: 2, Cells: [][]*duel.SerializedTile{
		{{Value: 2, Owner: 0}, {Value: 4, Owner: 1}},
		{{Value: 4, Owner: 0}, {Value: 2, Owner: 1}},
	}}}
	assert.Empty(t, LegalMoves(full))
}

func TestAutoplayPeersAgreeUntilGameOver(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	hostConn, joinConn := transport.Pipe()
	hostCfg := DefaultPeerConfig()
	hostCfg.Game.Size = 3
	hostCfg.Game.Rand = rand.New(rand.NewPCG(1, 2))
	joinCfg := DefaultPeerConfig()
	joinCfg.Host = false
	joinCfg.Game.Size = 3
	joinCfg.Game.Rand = rand.New(rand.NewPCG(3, 4))

	host := NewPeer(hostConn, hostCfg)
	joiner := NewPeer(joinConn, joinCfg)
	go host.Run(ctx)   //nolint:errcheck // stopped by cancel
	go joiner.Run(ctx) //nolint:errcheck // stopped by cancel

	type side struct {
		grids  map[uint64]duel.SerializedGrid
		scores map[uint64][]int
		reason EndReason
	}
	play := func(p *Peer, seed uint64) <-chan side {
		done := make(chan side, 1)
		s := side{grids: map[uint64]duel.SerializedGrid{}, scores: map[uint64][]int{}}
		go func() {
			s.reason = Autoplay(ctx, p, rand.New(rand.NewPCG(seed, seed)), func(evt Event) {
				if a, ok := evt.(ActuationEvent); ok && !a.Pending && len(a.Grid.Cells) > 0 {
					s.grids[a.Turn] = a.Grid
					s.scores[a.Turn] = a.Scores
				}
			})
			done <- s
		}()
		return done
	}

	hostDone, joinDone := play(host, 7), play(joiner, 9)
	hostSide, joinSide := <-hostDone, <-joinDone
	require.Equal(t, EndReasonOver, hostSide.reason)
	require.Equal(t, EndReasonOver, joinSide.reason)

	require.NotEmpty(t, hostSide.grids)
	for turn, g := range hostSide.grids {
		other, ok := joinSide.grids[turn]
		if !ok {
			continue
		}
		assert.Equal(t, g, other, "grids diverged at turn %d", turn)
		assert.Equal(t, hostSide.scores[turn], joinSide.scores[turn], "scores diverged at turn %d", turn)
	}
}
