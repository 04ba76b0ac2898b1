// Package duel implements the two-player 2048 turn engine. Each peer runs its
// own Manager; the peers stay identical by exchanging only move directions and
// half seeds.
package duel

import (
	"io"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
)

// Players is the number of participants. Score transfer arithmetic assumes two.
const Players = 2

// DefaultFourThreshold is the seed at or above which a 4 spawns instead of a 2.
const DefaultFourThreshold = 0.9

// Rand is the seed source. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Options configures a Manager.
type Options struct {
	Size          int
	WinValue      int
	FourThreshold float64
	Player        int    // local player index
	RoomID        string // shown to the actuator

	Transport Transport
	Actuator  Actuator
	Scores    ScoreKeeper // optional
	Rand      Rand        // defaults to a time-seeded source
	Logger    *log.Logger // defaults to a discard logger
}

// DefaultOptions returns a 4x4 game for player 0.
func DefaultOptions() Options {
	return Options{
		Size:          4,
		WinValue:      DefaultWinValue,
		FourThreshold: DefaultFourThreshold,
	}
}

// pendingMove is a move applied to the grid whose tile spawn still waits for
// the second seed half.
type pendingMove struct {
	turn      uint64
	direction Direction
	localSeed float64
	remote    bool // applied from a peer message; we owe an echo
}

// Manager is the authoritative turn state machine for one peer. It is not
// safe for concurrent use; a single event loop must own it.
type Manager struct {
	opts     Options
	resolver Resolver
	rng      Rand
	logger   *log.Logger

	grid          *Grid
	scores        []int
	score         int
	currentPlayer int
	over          bool
	won           bool
	winners       []int
	keepPlaying   bool
	turn          uint64
	peerReady     bool

	pending  *pendingMove
	stash    map[uint64]float64 // seeds that arrived before their move
	lastEcho *Message

	lastMerged []Cell
	lastSpawn  *Cell
}

// NewManager creates a manager with an empty grid. Call Restart to deal a
// fresh game or Resume to adopt one from the peer.
func NewManager(opts Options) *Manager {
	def := DefaultOptions()
	if opts.Size <= 0 {
		opts.Size = def.Size
	}
	if opts.WinValue <= 0 {
		opts.WinValue = def.WinValue
	}
	if opts.FourThreshold <= 0 || opts.FourThreshold > 1 {
		opts.FourThreshold = def.FourThreshold
	}
	if opts.Player < 0 || opts.Player >= Players {
		opts.Player = 0
	}

	m := &Manager{
		opts:     opts,
		resolver: Resolver{WinValue: opts.WinValue},
		rng:      opts.Rand,
		logger:   opts.Logger,
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())) //nolint:gosec // spawn seeds, not security
	}
	if m.logger == nil {
		m.logger = log.New(io.Discard)
	}
	m.setup()
	return m
}

// setup clears all game state.
func (m *Manager) setup() {
	m.grid = NewGrid(m.opts.Size)
	m.scores = make([]int, Players)
	m.score = 0
	m.currentPlayer = 0
	m.over = false
	m.won = false
	m.winners = nil
	m.keepPlaying = false
	m.turn = 0
	m.pending = nil
	m.stash = make(map[uint64]float64)
	m.lastEcho = nil
	m.lastMerged = nil
	m.lastSpawn = nil
}

// Restart deals a fresh game (one start tile per player, in player order) and
// hands it to the peer.
func (m *Manager) Restart() {
	m.setup()
	for p := range Players {
		m.currentPlayer = p
		m.addRandomTile(m.rng.Float64())
	}
	m.currentPlayer = 0
	m.lastSpawn = nil

	m.logger.Debug("game restarted", "room", m.opts.RoomID)
	m.actuate()
	m.send(StateMessage(m.State()))
}

// Resume adopts a serialized game without spawning tiles and tells the peer
// this side is ready. Malformed state falls back to a fresh game; the return
// value reports whether the state was used.
func (m *Manager) Resume(s State) bool {
	if !m.Load(s) {
		return false
	}
	m.send(ConnectedMessage())
	return true
}

// Load adopts a saved game like Resume but sends no ack; the caller hands the
// state to the peer itself.
func (m *Manager) Load(s State) bool {
	m.setup()
	if err := m.restore(s); err != nil {
		m.logger.Warn("cannot resume state, starting fresh", "error", err)
		m.Restart()
		return false
	}
	if !MovesAvailable(m.grid) {
		m.finish()
	}

	m.logger.Debug("game resumed", "room", m.opts.RoomID, "turn", m.turn)
	m.actuate()
	return true
}

func (m *Manager) restore(s State) error {
	if len(s.Scores) != Players {
		return ErrBadState
	}
	if s.CurrentPlayer < 0 || s.CurrentPlayer >= Players {
		return ErrBadState
	}
	if err := m.grid.Deserialize(s.Grid, Players); err != nil {
		return err
	}
	copy(m.scores, s.Scores)
	m.currentPlayer = s.CurrentPlayer
	m.turn = s.Turn
	return nil
}

// KeepPlaying lifts the win gate so play continues on the same grid.
func (m *Manager) KeepPlaying() {
	m.keepPlaying = true
	m.actuate()
}

// Terminated reports whether moves are refused.
func (m *Manager) Terminated() bool {
	return m.over || (m.won && !m.keepPlaying)
}

// Move resolves dir for the current player. Local moves (remote == false)
// are ignored unless it is the local player's turn; remote moves bypass that
// check. Moves are also ignored while a previous move waits for its seed and
// once the game is terminated. It reports whether the grid changed.
func (m *Manager) Move(dir Direction, remote bool) bool {
	if m.pending != nil {
		m.logger.Debug("move ignored, previous move unsettled", "direction", dir)
		return false
	}
	if !remote && m.currentPlayer != m.opts.Player {
		m.logger.Debug("move ignored, not our turn", "direction", dir, "current", m.currentPlayer)
		return false
	}
	if m.Terminated() {
		return false
	}

	mover := m.currentPlayer
	result := m.resolver.Resolve(m.grid, dir, mover, m.scores)
	if !result.Moved {
		return false
	}

	m.score += result.Gained
	m.lastMerged = m.lastMerged[:0]
	for _, mg := range result.Merges {
		m.lastMerged = append(m.lastMerged, mg.At)
	}
	m.lastSpawn = nil
	if result.Won && !m.won {
		m.won = true
		m.winners = []int{mover}
	}

	m.currentPlayer = (m.currentPlayer + 1) % Players
	m.turn++
	m.pending = &pendingMove{
		turn:      m.turn,
		direction: dir,
		localSeed: m.rng.Float64(),
		remote:    remote,
	}

	m.logger.Debug("move applied", "direction", dir, "mover", mover, "turn", m.turn, "remote", remote)

	if !remote {
		m.send(MoveMessage(dir, m.pending.localSeed, m.turn))
		if seed, ok := m.stashedSeed(); ok {
			m.settle(seed)
			return true
		}
		m.actuate()
	}
	return true
}

// stashedSeed returns the early seed for the current turn. A seed sent
// without a turn number counts for whichever move comes next.
func (m *Manager) stashedSeed() (float64, bool) {
	seed, ok := m.stash[m.turn]
	if early, found := m.stash[0]; found {
		if ok {
			seed = (seed + early) / 2
		} else {
			seed = early
		}
		ok = true
	}
	return seed, ok
}

// MovesAvailable reports whether any move can still change the grid.
func (m *Manager) MovesAvailable() bool {
	return MovesAvailable(m.grid)
}

// finish marks the game over; winners are every player holding the top score.
func (m *Manager) finish() {
	m.over = true
	highest := m.scores[0]
	for _, s := range m.scores[1:] {
		highest = max(highest, s)
	}
	m.winners = m.winners[:0]
	for p, s := range m.scores {
		if s == highest {
			m.winners = append(m.winners, p)
		}
	}
}

func (m *Manager) send(msg Message) {
	if m.opts.Transport == nil {
		return
	}
	if err := m.opts.Transport.Send(msg); err != nil {
		m.logger.Error("cannot send message", "message", msg, "error", err)
	}
}

func (m *Manager) actuate() {
	if m.opts.Scores != nil && m.opts.Scores.BestScore() < m.score {
		m.opts.Scores.SetBestScore(m.score)
	}
	if m.opts.Actuator != nil {
		m.opts.Actuator.Actuate(m.Snapshot())
	}
}

// Snapshot returns the actuator view of the current state.
func (m *Manager) Snapshot() Actuation {
	a := Actuation{
		Grid:          m.grid.Serialize(),
		Scores:        append([]int(nil), m.scores...),
		Score:         m.score,
		Over:          m.over,
		Won:           m.won,
		Winners:       append([]int(nil), m.winners...),
		Terminated:    m.Terminated(),
		RoomID:        m.opts.RoomID,
		CurrentPlayer: m.currentPlayer,
		Player:        m.opts.Player,
		Turn:          m.turn,
		Pending:       m.pending != nil,
		Merged:        append([]Cell(nil), m.lastMerged...),
	}
	if m.lastSpawn != nil {
		c := *m.lastSpawn
		a.Spawned = &c
	}
	if m.opts.Scores != nil {
		a.BestScore = m.opts.Scores.BestScore()
	}
	return a
}

// State returns the serialized game.
func (m *Manager) State() State {
	return State{
		Grid:          m.grid.Serialize(),
		CurrentPlayer: m.currentPlayer,
		Scores:        append([]int(nil), m.scores...),
		Turn:          m.turn,
	}
}

// Grid exposes the board. Callers must not mutate it.
func (m *Manager) Grid() *Grid { return m.grid }

// Scores returns a copy of the per-player scores.
func (m *Manager) Scores() []int { return append([]int(nil), m.scores...) }

// Score returns the global running total.
func (m *Manager) Score() int { return m.score }

// CurrentPlayer returns whose turn it is.
func (m *Manager) CurrentPlayer() int { return m.currentPlayer }

// Player returns the local player index.
func (m *Manager) Player() int { return m.opts.Player }

// RoomID returns the session identifier.
func (m *Manager) RoomID() string { return m.opts.RoomID }

// Over reports whether no moves remain.
func (m *Manager) Over() bool { return m.over }

// Won reports whether a win tile was reached.
func (m *Manager) Won() bool { return m.won }

// Winners returns the winning players, if decided.
func (m *Manager) Winners() []int { return append([]int(nil), m.winners...) }

// Turn returns the number of moves applied so far.
func (m *Manager) Turn() uint64 { return m.turn }

// PeerReady reports whether the peer acknowledged a resumed state.
func (m *Manager) PeerReady() bool { return m.peerReady }
