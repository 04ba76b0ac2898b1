package duel

// Seed reconciliation. The mover drafts one half of the spawn seed and sends
// it with the move; the receiver applies the move, drafts the other half and
// echoes it back. Both sides spawn with the average of the two halves, so
// neither peer picks the new tile alone and both pick the same one.

// Pending reports whether a move waits for its second seed half.
func (m *Manager) Pending() bool {
	return m.pending != nil
}

// PendingMove returns the move message for an unsettled local move so it can
// be sent again.
func (m *Manager) PendingMove() (Message, bool) {
	if m.pending == nil || m.pending.remote {
		return Message{}, false
	}
	return MoveMessage(m.pending.direction, m.pending.localSeed, m.pending.turn), true
}

// ApplyRemoteSeed settles the pending move with the peer's seed half. A seed
// for a turn other than the pending one is stashed or dropped; a turn of 0
// matches any pending move.
func (m *Manager) ApplyRemoteSeed(seed float64, turn uint64) {
	if m.pending == nil {
		m.ReceiveSeed(seed, turn)
		return
	}
	if turn != 0 && turn != m.pending.turn {
		if turn > m.pending.turn {
			m.ReceiveSeed(seed, turn)
		} else {
			m.logger.Debug("stale seed dropped", "turn", turn, "pending", m.pending.turn)
		}
		return
	}
	m.settle(seed)
}

// ReceiveSeed stores a seed half that arrived before the move it belongs to.
// Repeated deliveries for the same turn are averaged in.
func (m *Manager) ReceiveSeed(seed float64, turn uint64) {
	if turn != 0 && turn <= m.turn {
		m.logger.Debug("stale seed dropped", "turn", turn, "applied", m.turn)
		return
	}
	if prev, ok := m.stash[turn]; ok {
		seed = (prev + seed) / 2
	}
	m.stash[turn] = seed
}

// settle finishes the pending move: echo our half if we owe one, spawn the
// agreed tile, evaluate termination, and release the move gate.
func (m *Manager) settle(remoteSeed float64) {
	p := m.pending
	if p.remote {
		echo := SeedMessage(p.localSeed, p.turn)
		m.lastEcho = &echo
		m.send(echo)
	}

	m.addRandomTile((remoteSeed + p.localSeed) / 2)
	if !MovesAvailable(m.grid) {
		m.finish()
	}

	for turn := range m.stash {
		if turn <= p.turn {
			delete(m.stash, turn)
		}
	}
	m.pending = nil
	m.logger.Debug("turn settled", "turn", p.turn, "over", m.over)
	m.actuate()
}

// addRandomTile spawns a tile for the current player using seed for both the
// value and the cell.
func (m *Manager) addRandomTile(seed float64) {
	if !m.grid.CellsAvailable() {
		return
	}
	value := 2
	if seed >= m.opts.FourThreshold {
		value = 4
	}
	tile := m.grid.NewTile(m.grid.RandomAvailableCell(seed), value, m.currentPlayer)
	m.grid.InsertTile(tile)
	m.scores[tile.Owner] += tile.Value

	spawned := tile.Pos
	m.lastSpawn = &spawned
}

// HandleMessage applies one message from the peer.
func (m *Manager) HandleMessage(msg Message) {
	if err := msg.Validate(); err != nil {
		m.logger.Warn("invalid peer message dropped", "error", err)
		return
	}

	switch msg.Kind() {
	case KindState:
		m.Resume(*msg.State)
	case KindConnected:
		m.peerReady = true
		m.actuate()
	case KindMove:
		m.handleRemoteMove(*msg.Move, *msg.Seed, msg.Turn)
	case KindSeed:
		m.ApplyRemoteSeed(*msg.Seed, msg.Turn)
	}
}

func (m *Manager) handleRemoteMove(dir Direction, seed float64, turn uint64) {
	if turn != 0 && turn <= m.turn {
		// the mover resent a move we already applied; repeat our echo
		if m.lastEcho != nil && m.lastEcho.Turn == turn {
			m.send(*m.lastEcho)
		}
		return
	}
	if turn != 0 && turn != m.turn+1 {
		// sent against a game this side has since replaced
		m.logger.Warn("peer move skips turns, dropped", "turn", turn, "applied", m.turn)
		return
	}
	if m.won && !m.keepPlaying && !m.over {
		// the peer chose to continue past the win tile
		m.keepPlaying = true
	}
	if !m.Move(dir, true) {
		m.logger.Warn("peer move rejected", "direction", dir, "turn", turn, "pending", m.pending != nil)
		return
	}
	m.settle(seed)
}
