package multiplayer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/duel2048/internal/duel"
	"github.com/vovakirdan/duel2048/internal/transport"
)

// PeerConfig configures a Peer.
type PeerConfig struct {
	Game        duel.Options // Transport, Actuator and Player are set by the Peer
	Host        bool         // the host deals the first game and plays first
	SeedTimeout time.Duration
	MaxResends  int
	EventBuffer int

	Logger  *log.Logger
	Results MatchResultSaver // optional
	States  StateStore       // optional; saves every settled turn under Game.RoomID
	Resume  bool             // host only: continue the saved game for Game.RoomID
}

// DefaultPeerConfig returns a host configuration with default timings.
func DefaultPeerConfig() PeerConfig {
	return PeerConfig{
		Game:        duel.DefaultOptions(),
		Host:        true,
		SeedTimeout: 3 * time.Second,
		MaxResends:  5,
		EventBuffer: 64,
	}
}

// Peer runs one side of a duel. Run owns the Manager; every other method is
// safe to call from any goroutine.
type Peer struct {
	cfg    PeerConfig
	conn   transport.Conn
	mgr    *duel.Manager
	events *EventQueue
	cmds   chan command
	logger *log.Logger

	matchID      MatchID
	started      time.Time
	reportedWin  bool
	reportedOver bool
	savedTurn    uint64

	resendTimer *time.Timer
	resendC     <-chan time.Time
	resends     int
}

// NewPeer creates a peer speaking over conn.
func NewPeer(conn transport.Conn, cfg PeerConfig) *Peer {
	def := DefaultPeerConfig()
	if cfg.SeedTimeout <= 0 {
		cfg.SeedTimeout = def.SeedTimeout
	}
	if cfg.MaxResends < 0 {
		cfg.MaxResends = def.MaxResends
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}

	p := &Peer{
		cfg:    cfg,
		conn:   conn,
		events: NewEventQueue(cfg.EventBuffer),
		cmds:   make(chan command, 16),
		logger: cfg.Logger,
	}

	opts := cfg.Game
	opts.Transport = conn
	opts.Actuator = p.events
	opts.Logger = cfg.Logger
	opts.Player = 1
	if cfg.Host {
		opts.Player = 0
	}
	p.mgr = duel.NewManager(opts)

	p.resendTimer = time.NewTimer(cfg.SeedTimeout)
	p.resendTimer.Stop()
	return p
}

// Events returns the peer's event stream. PeerStoppedEvent is always the
// last event.
func (p *Peer) Events() <-chan Event {
	return p.events.Events()
}

// Move asks the peer loop to play dir for the local player.
func (p *Peer) Move(dir duel.Direction) {
	p.submit(moveCmd{dir: dir})
}

// KeepPlaying continues a won game.
func (p *Peer) KeepPlaying() {
	p.submit(keepPlayingCmd{})
}

// Restart deals a new game to both peers.
func (p *Peer) Restart() {
	p.submit(restartCmd{})
}

func (p *Peer) submit(c command) {
	select {
	case p.cmds <- c:
	default:
		p.logger.Warn("input dropped, peer loop busy")
	}
}

// Manager returns the game engine. Only read it after Run returns.
func (p *Peer) Manager() *duel.Manager {
	return p.mgr
}

// Run drives the game until ctx is cancelled, the link closes or the peer
// stops answering. A cancelled ctx is a normal exit and returns nil.
func (p *Peer) Run(ctx context.Context) error {
	p.start(ctx)
	reason, err := p.loop(ctx)
	p.resendTimer.Stop()

	if p.mgr.Turn() > 0 && !p.reportedWin && !p.reportedOver {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		p.report(saveCtx, reason)
		cancel()
	}

	p.logger.Info("peer stopped", "room", p.mgr.RoomID(), "reason", reason, "error", err)
	p.events.Send(PeerStoppedEvent{Reason: reason, Err: err})
	p.events.Close()
	return err
}

func (p *Peer) start(ctx context.Context) {
	p.newGame()
	if !p.cfg.Host {
		p.logger.Debug("waiting for host state")
		return
	}

	if p.cfg.Resume && p.cfg.States != nil {
		state, err := p.cfg.States.LoadState(ctx, p.mgr.RoomID())
		switch {
		case err != nil:
			p.logger.Warn("no saved game, dealing a new one", "room", p.mgr.RoomID(), "error", err)
		case p.mgr.Load(state):
			p.logger.Info("resumed saved game", "room", p.mgr.RoomID(), "turn", state.Turn)
			p.savedTurn = p.mgr.Turn()
			if err := p.conn.Send(duel.StateMessage(p.mgr.State())); err != nil {
				p.logger.Error("cannot hand state to peer", "error", err)
			}
			return
		default:
			// the rejected state was replaced by a fresh game
			return
		}
	}
	p.mgr.Restart()
}

func (p *Peer) loop(ctx context.Context) (EndReason, error) {
	for {
		p.armResend()

		select {
		case <-ctx.Done():
			return EndReasonQuit, nil

		case <-p.conn.Done():
			return EndReasonDisconnect, fmt.Errorf("%w: %v", ErrPeerClosed, p.conn.Err())

		case msg := <-p.conn.Messages():
			if msg.Kind() == duel.KindState {
				p.newGame()
			}
			p.mgr.HandleMessage(msg)

		case c := <-p.cmds:
			c.apply(p)

		case <-p.resendC:
			p.resendC = nil
			msg, ok := p.mgr.PendingMove()
			if !ok {
				continue
			}
			p.resends++
			if p.resends > p.cfg.MaxResends {
				p.logger.Error("peer stopped answering", "turn", msg.Turn, "resends", p.resends-1)
				return EndReasonTimeout, ErrSeedTimeout
			}
			p.logger.Warn("resending unanswered move", "turn", msg.Turn, "attempt", p.resends)
			if err := p.conn.Send(msg); err != nil {
				p.logger.Error("resend failed", "error", err)
			}
			p.events.Send(ResendEvent{Turn: msg.Turn, Attempt: p.resends})
		}

		p.afterEvent(ctx)
	}
}

// armResend starts the resend timer while a local move waits for its seed
// and stops it once the move settles.
func (p *Peer) armResend() {
	_, waiting := p.mgr.PendingMove()
	switch {
	case waiting && p.resendC == nil:
		p.resendTimer.Reset(p.cfg.SeedTimeout)
		p.resendC = p.resendTimer.C
	case !waiting && p.resendC != nil:
		p.resendTimer.Stop()
		p.resendC = nil
	}
	if !waiting {
		p.resends = 0
	}
}

func (p *Peer) afterEvent(ctx context.Context) {
	if p.mgr.Pending() {
		return
	}

	if p.cfg.States != nil && p.mgr.Turn() != p.savedTurn && !p.mgr.Over() {
		if err := p.cfg.States.SaveState(ctx, p.mgr.RoomID(), p.mgr.State()); err != nil {
			p.logger.Warn("cannot save game state", "room", p.mgr.RoomID(), "error", err)
		}
		p.savedTurn = p.mgr.Turn()
	}

	switch {
	case p.mgr.Over() && !p.reportedOver:
		p.reportedOver = true
		p.report(ctx, EndReasonOver)
		if p.cfg.States != nil {
			if err := p.cfg.States.DeleteState(ctx, p.mgr.RoomID()); err != nil {
				p.logger.Debug("cannot delete finished game", "room", p.mgr.RoomID(), "error", err)
			}
		}
	case p.mgr.Won() && !p.reportedWin:
		p.reportedWin = true
		p.report(ctx, EndReasonWon)
	}
}

func (p *Peer) report(ctx context.Context, reason EndReason) {
	result := p.Result(reason)
	p.logger.Info("game ended", "room", result.RoomID, "reason", reason, "scores", result.Scores, "winners", result.Winners)
	p.events.Send(GameEndedEvent{Result: result})

	if p.cfg.Results == nil {
		return
	}
	if err := p.cfg.Results.SaveMatchResult(ctx, result); err != nil {
		p.logger.Error("cannot save match result", "match", result.MatchID, "error", err)
	}
}

// Result summarizes the current game. Only call it after Run returns or
// from the peer loop.
func (p *Peer) Result(reason EndReason) MatchResult {
	return MatchResult{
		MatchID:  p.matchID,
		RoomID:   p.mgr.RoomID(),
		Player:   p.mgr.Player(),
		Scores:   p.mgr.Scores(),
		Winners:  p.mgr.Winners(),
		Score:    p.mgr.Score(),
		MaxTile:  p.mgr.Grid().MaxTile(),
		Turns:    p.mgr.Turn(),
		Reason:   reason,
		Duration: time.Since(p.started),
	}
}

func (p *Peer) newGame() {
	p.matchID = MatchID(fmt.Sprintf("%s-%d", p.mgr.RoomID(), time.Now().UnixNano()))
	p.started = time.Now()
	p.reportedWin = false
	p.reportedOver = false
	p.savedTurn = 0
}
