// Package multiplayer runs duel peers. A Peer owns one duel.Manager and
// drives it from its transport link and local input; a Lobby pairs sessions
// on one server by join code.
package multiplayer

import (
	"context"
	"errors"
	"time"

	"github.com/vovakirdan/duel2048/internal/duel"
)

var (
	// ErrSeedTimeout is returned when the peer never answered a move.
	ErrSeedTimeout = errors.New("multiplayer: peer did not answer the move")
	// ErrPeerClosed is returned when the link to the peer ended.
	ErrPeerClosed = errors.New("multiplayer: peer link closed")
	// ErrRoomNotFound is returned for unknown or expired join codes.
	ErrRoomNotFound = errors.New("multiplayer: room not found")
	// ErrRoomFull is returned when a room already has its second player.
	ErrRoomFull = errors.New("multiplayer: room is full")
	// ErrOwnRoom is returned when a session joins the room it hosts.
	ErrOwnRoom = errors.New("multiplayer: cannot join your own room")
	// ErrAlreadyHosting is returned when a session opens a second room.
	ErrAlreadyHosting = errors.New("multiplayer: already hosting a room")
)

// SessionID uniquely identifies a player's session (e.g., SSH connection).
type SessionID string

// MatchID uniquely identifies one game between two peers.
type MatchID string

// EndReason describes why a game or a peer loop ended.
type EndReason int

const (
	EndReasonOver       EndReason = iota // no moves left
	EndReasonWon                         // a player reached the win tile
	EndReasonDisconnect                  // peer link closed
	EndReasonTimeout                     // peer stopped answering moves
	EndReasonQuit                        // local player left
)

func (r EndReason) String() string {
	switch r {
	case EndReasonOver:
		return "Game over"
	case EndReasonWon:
		return "Win tile reached"
	case EndReasonDisconnect:
		return "Opponent disconnected"
	case EndReasonTimeout:
		return "Opponent not responding"
	case EndReasonQuit:
		return "Left the game"
	default:
		return "Unknown"
	}
}

// Key is the stable name stored alongside match results.
func (r EndReason) Key() string {
	switch r {
	case EndReasonOver:
		return "over"
	case EndReasonWon:
		return "won"
	case EndReasonDisconnect:
		return "disconnect"
	case EndReasonTimeout:
		return "timeout"
	case EndReasonQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// MatchResult contains the outcome of a finished game as seen by one peer.
type MatchResult struct {
	MatchID  MatchID
	RoomID   string
	Player   int // local player index
	Scores   []int
	Winners  []int
	Score    int // global score
	MaxTile  int
	Turns    uint64
	Reason   EndReason
	Duration time.Duration
}

// Won reports whether the local player is among the winners.
func (r MatchResult) Won() bool {
	for _, w := range r.Winners {
		if w == r.Player {
			return true
		}
	}
	return false
}

// MatchResultSaver persists finished games.
// This allows peers to save results without depending on the storage package.
type MatchResultSaver interface {
	SaveMatchResult(ctx context.Context, result MatchResult) error
}

// StateStore keeps in-progress games so a room can be resumed.
type StateStore interface {
	SaveState(ctx context.Context, roomID string, state duel.State) error
	LoadState(ctx context.Context, roomID string) (duel.State, error)
	DeleteState(ctx context.Context, roomID string) error
}
