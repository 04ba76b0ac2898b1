package duel

import (
	"fmt"
	"math"
)

// MessageKind classifies a peer message.
type MessageKind int

const (
	KindUnknown MessageKind = iota
	KindConnected
	KindState
	KindMove
	KindSeed
)

func (k MessageKind) String() string {
	switch k {
	case KindConnected:
		return "connected"
	case KindState:
		return "state"
	case KindMove:
		return "move"
	case KindSeed:
		return "seed"
	default:
		return "unknown"
	}
}

// State is the serialized game handed to a peer or persisted for resume.
type State struct {
	Grid          SerializedGrid `json:"grid"`
	CurrentPlayer int            `json:"currentPlayer"`
	Scores        []int          `json:"scores"`
	Turn          uint64         `json:"turn,omitempty"`
}

// Message is the single envelope exchanged between peers. Exactly one of
// the shapes below is populated:
//
//	{connected: true}
//	{state: {...}}
//	{move: 0..3, seed: f, turn: n}
//	{seed: f, turn: n}
type Message struct {
	Connected bool       `json:"connected,omitempty"`
	State     *State     `json:"state,omitempty"`
	Move      *Direction `json:"move,omitempty"`
	Seed      *float64   `json:"seed,omitempty"`
	Turn      uint64     `json:"turn,omitempty"`
}

// ConnectedMessage acknowledges a resumed state.
func ConnectedMessage() Message {
	return Message{Connected: true}
}

// StateMessage hands a fresh game to the peer.
func StateMessage(s State) Message {
	return Message{State: &s}
}

// MoveMessage announces a locally applied move and the mover's seed half.
func MoveMessage(dir Direction, seed float64, turn uint64) Message {
	return Message{Move: &dir, Seed: &seed, Turn: turn}
}

// SeedMessage carries the receiver's seed half for a move.
func SeedMessage(seed float64, turn uint64) Message {
	return Message{Seed: &seed, Turn: turn}
}

// Kind returns the message shape.
func (m Message) Kind() MessageKind {
	switch {
	case m.Move != nil:
		return KindMove
	case m.State != nil:
		return KindState
	case m.Connected:
		return KindConnected
	case m.Seed != nil:
		return KindSeed
	default:
		return KindUnknown
	}
}

// Validate checks that the populated fields form a well-shaped message.
func (m Message) Validate() error {
	switch m.Kind() {
	case KindMove:
		if !m.Move.Valid() {
			return fmt.Errorf("duel: invalid move direction %d", *m.Move)
		}
		if m.Seed == nil {
			return fmt.Errorf("duel: move message without seed")
		}
		return validSeed(*m.Seed)
	case KindSeed:
		return validSeed(*m.Seed)
	case KindState, KindConnected:
		return nil
	default:
		return fmt.Errorf("duel: empty message")
	}
}

func validSeed(s float64) error {
	if math.IsNaN(s) || s < 0 || s >= 1 {
		return fmt.Errorf("duel: seed %v outside [0,1)", s)
	}
	return nil
}

func (m Message) String() string {
	switch m.Kind() {
	case KindMove:
		return fmt.Sprintf("move{%s turn=%d}", *m.Move, m.Turn)
	case KindSeed:
		return fmt.Sprintf("seed{turn=%d}", m.Turn)
	default:
		return m.Kind().String()
	}
}
