package multiplayer

import "github.com/vovakirdan/duel2048/internal/duel"

// Event is sent from a Peer to its front end.
type Event interface {
	peerEvent()
}

// ActuationEvent carries a new view of the game.
type ActuationEvent struct {
	duel.Actuation
}

func (ActuationEvent) peerEvent() {}

// GameEndedEvent is sent once per game when it terminates.
type GameEndedEvent struct {
	Result MatchResult
}

func (GameEndedEvent) peerEvent() {}

// ResendEvent is sent each time an unanswered move is sent again.
type ResendEvent struct {
	Turn    uint64
	Attempt int
}

func (ResendEvent) peerEvent() {}

// PeerStoppedEvent is the last event of a Peer.
type PeerStoppedEvent struct {
	Reason EndReason
	Err    error
}

func (PeerStoppedEvent) peerEvent() {}

// command is an input from the front end, applied on the peer loop.
type command interface {
	apply(p *Peer)
}

type moveCmd struct{ dir duel.Direction }

func (c moveCmd) apply(p *Peer) { p.mgr.Move(c.dir, false) }

type keepPlayingCmd struct{}

func (keepPlayingCmd) apply(p *Peer) { p.mgr.KeepPlaying() }

type restartCmd struct{}

func (restartCmd) apply(p *Peer) {
	p.newGame()
	p.mgr.Restart()
}
