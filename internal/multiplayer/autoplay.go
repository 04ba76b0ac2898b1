package multiplayer

import (
	"context"

	"github.com/vovakirdan/duel2048/internal/duel"
)

// LegalMoves returns the directions that would change the grid for player.
func LegalMoves(a duel.Actuation) []duel.Direction {
	var moves []duel.Direction
	for _, d := range duel.Directions {
		g := duel.NewGrid(a.Grid.Size)
		if err := g.Deserialize(a.Grid, duel.Players); err != nil {
			return nil
		}
		if duel.Resolve(g, d, a.CurrentPlayer, make([]int, duel.Players)).Moved {
			moves = append(moves, d)
		}
	}
	return moves
}

// Autoplay plays random legal moves for p's local player until the game is
// over, ctx is cancelled or the peer stops. Every event is passed to observe
// (if non-nil) before it is acted on. A won game is continued. It returns
// the reason play ended.
func Autoplay(ctx context.Context, p *Peer, rnd duel.Rand, observe func(Event)) EndReason {
	for {
		var evt Event
		select {
		case <-ctx.Done():
			return EndReasonQuit
		case e, ok := <-p.Events():
			if !ok {
				return EndReasonQuit
			}
			evt = e
		}
		if observe != nil {
			observe(evt)
		}

		switch evt := evt.(type) {
		case PeerStoppedEvent:
			return evt.Reason
		case ActuationEvent:
			a := evt.Actuation
			switch {
			case a.Over:
				return EndReasonOver
			case a.Won && a.Terminated:
				p.KeepPlaying()
			case a.MyTurn():
				moves := LegalMoves(a)
				if len(moves) == 0 {
					continue
				}
				p.Move(moves[int(rnd.Float64()*float64(len(moves)))%len(moves)])
			}
		}
	}
}
