package duel

import (
	"math/rand/v2"
	"testing"
)

// seqRand replays a fixed list of seeds.
type seqRand struct {
	vals []float64
	i    int
}

func (r *seqRand) Float64() float64 {
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v
}

// outbox collects messages sent by a manager.
type outbox struct {
	msgs []Message
}

func (o *outbox) Send(msg Message) error {
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) drain() []Message {
	out := o.msgs
	o.msgs = nil
	return out
}

// pair is two managers wired back to back. Messages are queued and delivered
// by flush so handlers never re-enter each other.
type pair struct {
	a, b       *Manager
	toB, toA   *outbox
	actuations [Players][]Actuation
}

func newPair(t *testing.T, seedA, seedB int64) *pair {
	t.Helper()
	p := &pair{toB: &outbox{}, toA: &outbox{}}
	p.a = NewManager(Options{
		Player:    0,
		Transport: p.toB,
		Rand:      rand.New(rand.NewPCG(uint64(seedA), 1)),
		Actuator:  ActuatorFunc(func(a Actuation) { p.actuations[0] = append(p.actuations[0], a) }),
	})
	p.b = NewManager(Options{
		Player:    1,
		Transport: p.toA,
		Rand:      rand.New(rand.NewPCG(uint64(seedB), 2)),
		Actuator:  ActuatorFunc(func(a Actuation) { p.actuations[1] = append(p.actuations[1], a) }),
	})
	p.a.Restart()
	p.flush()
	return p
}

func (p *pair) flush() {
	for len(p.toA.msgs)+len(p.toB.msgs) > 0 {
		for _, msg := range p.toB.drain() {
			p.b.HandleMessage(msg)
		}
		for _, msg := range p.toA.drain() {
			p.a.HandleMessage(msg)
		}
	}
}

func (p *pair) manager(player int) *Manager {
	if player == 0 {
		return p.a
	}
	return p.b
}

func assertInSync(t *testing.T, p *pair) {
	t.Helper()
	if !p.a.Grid().Equal(p.b.Grid()) {
		t.Fatalf("grids diverged at turn %d", p.a.Turn())
	}
	sa, sb := p.a.Scores(), p.b.Scores()
	for i := range sa {
		if sa[i] != sb[i] {
			t.Fatalf("scores diverged: %v vs %v", sa, sb)
		}
	}
	if p.a.CurrentPlayer() != p.b.CurrentPlayer() || p.a.Turn() != p.b.Turn() {
		t.Fatalf("turn state diverged: player %d/%d turn %d/%d",
			p.a.CurrentPlayer(), p.b.CurrentPlayer(), p.a.Turn(), p.b.Turn())
	}
	if p.a.Over() != p.b.Over() || p.a.Won() != p.b.Won() {
		t.Fatalf("termination diverged")
	}
}

func TestRestartDealsOneTilePerPlayer(t *testing.T) {
	p := newPair(t, 1, 2)

	tiles := p.a.Grid().Tiles()
	if len(tiles) != Players {
		t.Fatalf("tiles = %d, want %d", len(tiles), Players)
	}
	owners := map[int]bool{}
	for _, tile := range tiles {
		owners[tile.Owner] = true
	}
	if len(owners) != Players {
		t.Errorf("start tiles owners = %v, want one per player", owners)
	}
	if p.a.CurrentPlayer() != 0 {
		t.Errorf("current player = %d, want 0", p.a.CurrentPlayer())
	}
	if !p.a.PeerReady() {
		t.Error("host should see the joiner's ack")
	}
	assertInSync(t, p)
}

func TestPeersStayInSync(t *testing.T) {
	for _, seeds := range [][2]int64{{1, 2}, {42, 7}, {1000, 1000}} {
		p := newPair(t, seeds[0], seeds[1])
		pick := rand.New(rand.NewPCG(uint64(seeds[0]+seeds[1]), 3))

		for step := 0; step < 400 && !p.a.Terminated(); step++ {
			mover := p.manager(p.a.CurrentPlayer())
			dir := Directions[pick.IntN(len(Directions))]
			if !mover.Move(dir, false) {
				moved := false
				for _, d := range Directions {
					if mover.Move(d, false) {
						moved = true
						break
					}
				}
				if !moved {
					t.Fatalf("no direction moved but game not terminated")
				}
			}
			p.flush()
			assertInSync(t, p)

			owned := ownedValues(p.a.Grid())
			scores := p.a.Scores()
			if scores[0] != owned[0] || scores[1] != owned[1] {
				t.Fatalf("scores %v do not match owned tiles %v", scores, owned)
			}
		}
		if p.a.Pending() || p.b.Pending() {
			t.Error("moves left unsettled")
		}
	}
}

func TestMoveGating(t *testing.T) {
	p := newPair(t, 3, 4)

	if p.b.Move(DirLeft, false) || p.b.Move(DirRight, false) {
		t.Fatal("joiner moved on the host's turn")
	}

	moved := false
	for _, d := range Directions {
		if p.a.Move(d, false) {
			moved = true
			break
		}
	}
	if !moved {
		t.Fatal("host could not move")
	}
	if !p.a.Pending() {
		t.Fatal("move should wait for the peer seed")
	}
	for _, d := range Directions {
		if p.a.Move(d, false) {
			t.Fatal("second move accepted before settle")
		}
	}
	last := p.actuations[0][len(p.actuations[0])-1]
	if !last.Pending || last.MyTurn() {
		t.Errorf("pending actuation = %+v", last)
	}

	p.flush()
	if p.a.Pending() {
		t.Error("still pending after flush")
	}
	if p.a.CurrentPlayer() != 1 {
		t.Errorf("current player = %d, want 1", p.a.CurrentPlayer())
	}
	if !p.actuations[1][len(p.actuations[1])-1].MyTurn() {
		t.Error("joiner should see its turn")
	}
}

func TestSpawnValueThreshold(t *testing.T) {
	tests := []struct {
		name  string
		local float64
		peer  float64
		want  int
	}{
		{"low seeds spawn a two", 0.1, 0.2, 2},
		{"average below threshold", 0.95, 0.5, 2},
		{"average at threshold", 0.9, 0.9, 4},
		{"high seeds spawn a four", 0.95, 0.99, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &outbox{}
			m := NewManager(Options{Transport: out, Rand: &seqRand{vals: []float64{tt.local}}})
			m.Resume(State{
				Grid:   layout(4, map[Cell]SerializedTile{{3, 0}: {Value: 2, Owner: 1}}),
				Scores: []int{0, 2},
			})
			if !m.Move(DirLeft, false) {
				t.Fatal("move rejected")
			}
			m.ApplyRemoteSeed(tt.peer, 1)

			spawned := m.Snapshot().Spawned
			if spawned == nil {
				t.Fatal("no tile spawned")
			}
			tile := m.Grid().CellContent(*spawned)
			if tile.Value != tt.want {
				t.Errorf("spawned %d, want %d", tile.Value, tt.want)
			}
			if tile.Owner != 1 {
				t.Errorf("spawn owner = %d, want the next player", tile.Owner)
			}
			if m.Scores()[1] != 2+tt.want {
				t.Errorf("scores = %v", m.Scores())
			}
		})
	}
}

func TestSeedBeforeMoveIsStashed(t *testing.T) {
	out := &outbox{}
	m := NewManager(Options{Transport: out, Rand: &seqRand{vals: []float64{0.2}}})
	m.Resume(State{
		Grid:   layout(4, map[Cell]SerializedTile{{3, 3}: {Value: 2, Owner: 0}}),
		Scores: []int{2, 0},
	})
	out.drain()

	m.HandleMessage(SeedMessage(0.4, 1))
	if m.Pending() {
		t.Fatal("seed alone should not create a pending move")
	}
	if !m.Move(DirUp, false) {
		t.Fatal("move rejected")
	}
	if m.Pending() {
		t.Error("stashed seed should settle the move at once")
	}
	if len(m.Grid().Tiles()) != 2 {
		t.Errorf("tiles = %d, want 2", len(m.Grid().Tiles()))
	}
	// (0.2+0.4)/2 = 0.3 over 15 free cells picks index 4
	if got := *m.Snapshot().Spawned; got != (Cell{1, 0}) {
		t.Errorf("spawned at %v, want (1,0)", got)
	}
}

func TestTurnlessSeedBeforeMoveIsStashed(t *testing.T) {
	resumed := func() (*Manager, *outbox) {
		out := &outbox{}
		m := NewManager(Options{Transport: out, Rand: &seqRand{vals: []float64{0.2}}})
		m.Resume(State{
			Grid:   layout(4, map[Cell]SerializedTile{{3, 3}: {Value: 2, Owner: 0}}),
			Scores: []int{2, 0},
		})
		out.drain()
		return m, out
	}

	m, _ := resumed()
	m.HandleMessage(SeedMessage(0.4, 0))
	if !m.Move(DirUp, false) {
		t.Fatal("move rejected")
	}
	if m.Pending() {
		t.Fatal("seed without a turn should settle the next move")
	}
	// (0.2+0.4)/2 = 0.3 over 15 free cells picks index 4
	if got := *m.Snapshot().Spawned; got != (Cell{1, 0}) {
		t.Errorf("spawned at %v, want (1,0)", got)
	}

	m, _ = resumed()
	m.HandleMessage(SeedMessage(0.9, 1))
	m.HandleMessage(SeedMessage(0.5, 0))
	if !m.Move(DirUp, false) {
		t.Fatal("move rejected")
	}
	if m.Pending() {
		t.Fatal("stashed seeds should settle the move")
	}
	// (0.9+0.5)/2 = 0.7, then (0.2+0.7)/2 = 0.45 picks index 6
	spawned := m.Snapshot().Spawned
	if *spawned != (Cell{1, 2}) {
		t.Errorf("spawned at %v, want (1,2)", *spawned)
	}
	if tile := m.Grid().CellContent(*spawned); tile == nil || tile.Value != 2 {
		t.Errorf("spawned tile = %+v, want a 2", tile)
	}
}

// anyMove plays the first direction that changes m's grid.
func anyMove(t *testing.T, m *Manager) {
	t.Helper()
	for _, d := range Directions {
		if m.Move(d, false) {
			return
		}
	}
	t.Fatal("no direction moved")
}

func TestMoveFromReplacedGameDropped(t *testing.T) {
	p := newPair(t, 11, 12)
	anyMove(t, p.a)
	p.flush()

	// the joiner's move is still in flight when the host deals again
	anyMove(t, p.b)
	p.a.Restart()
	p.flush()

	assertInSync(t, p)
	if p.a.Turn() != 0 {
		t.Errorf("turn = %d, want the fresh game at 0", p.a.Turn())
	}
	if p.a.Pending() || p.b.Pending() {
		t.Error("no move should wait after the restart")
	}
	if len(p.a.Grid().Tiles()) != Players {
		t.Errorf("tiles = %d, want only the start tiles", len(p.a.Grid().Tiles()))
	}
}

func TestLoadSendsNoAck(t *testing.T) {
	out := &outbox{}
	m := NewManager(Options{Transport: out})
	ok := m.Load(State{
		Grid:   layout(4, map[Cell]SerializedTile{{1, 1}: {Value: 4, Owner: 1}}),
		Scores: []int{0, 4},
		Turn:   9,
	})
	if !ok {
		t.Fatal("state rejected")
	}
	if sent := out.drain(); len(sent) != 0 {
		t.Errorf("load sent %v, want nothing", sent)
	}
	if m.Turn() != 9 || m.Scores()[1] != 4 {
		t.Errorf("turn = %d scores = %v", m.Turn(), m.Scores())
	}

	m.Resume(m.State())
	if sent := out.drain(); len(sent) != 1 || sent[0].Kind() != KindConnected {
		t.Errorf("resume sent %v, want a connected ack", sent)
	}
}

func TestDuplicateMoveResendsEcho(t *testing.T) {
	out := &outbox{}
	m := NewManager(Options{Player: 1, Transport: out, Rand: &seqRand{vals: []float64{0.5}}})
	m.Resume(State{
		Grid:   layout(4, map[Cell]SerializedTile{{0, 3}: {Value: 2, Owner: 0}}),
		Scores: []int{2, 0},
	})
	out.drain()

	move := MoveMessage(DirUp, 0.1, 1)
	m.HandleMessage(move)
	before := m.Grid().Serialize()
	first := out.drain()
	if len(first) != 1 || first[0].Kind() != KindSeed || first[0].Turn != 1 {
		t.Fatalf("first delivery sent %v", first)
	}

	m.HandleMessage(move)
	second := out.drain()
	if len(second) != 1 || *second[0].Seed != *first[0].Seed {
		t.Fatalf("resend sent %v, want the same echo", second)
	}
	if m.Turn() != 1 {
		t.Errorf("turn = %d, want 1", m.Turn())
	}
	after := NewGrid(4)
	_ = after.Deserialize(before, Players)
	if !m.Grid().Equal(after) {
		t.Error("duplicate move changed the grid")
	}
}

func TestStaleSeedIgnored(t *testing.T) {
	p := newPair(t, 5, 6)
	for _, d := range Directions {
		if p.a.Move(d, false) {
			break
		}
	}
	p.flush()
	grid := p.a.Grid().Serialize()

	p.a.HandleMessage(SeedMessage(0.7, 1))
	if p.a.Pending() {
		t.Error("stale seed created a pending move")
	}
	check := NewGrid(4)
	_ = check.Deserialize(grid, Players)
	if !p.a.Grid().Equal(check) {
		t.Error("stale seed changed the grid")
	}
}

func TestInvalidMessagesDropped(t *testing.T) {
	m := NewManager(Options{})
	m.Resume(State{Grid: layout(4, map[Cell]SerializedTile{{0, 0}: {Value: 2}}), Scores: []int{2, 0}})

	bad := Direction(9)
	seed := 0.5
	big := 1.5
	for _, msg := range []Message{
		{},
		{Move: &bad, Seed: &seed, Turn: 1},
		{Move: new(Direction), Turn: 1},
		{Seed: &big, Turn: 1},
	} {
		m.HandleMessage(msg)
	}
	if m.Turn() != 0 || m.Pending() || len(m.Grid().Tiles()) != 1 {
		t.Error("invalid messages changed the game")
	}
}

func TestResumeFallsBackToRestart(t *testing.T) {
	out := &outbox{}
	m := NewManager(Options{Transport: out, Rand: &seqRand{vals: []float64{0.1, 0.6}}})

	if m.Resume(State{Grid: layout(4, nil), Scores: []int{0}}) {
		t.Fatal("malformed state accepted")
	}
	if len(m.Grid().Tiles()) != Players {
		t.Errorf("fresh game tiles = %d", len(m.Grid().Tiles()))
	}
	sent := out.drain()
	if len(sent) != 1 || sent[0].Kind() != KindState {
		t.Errorf("fallback sent %v, want a state", sent)
	}
}

func TestResumeTerminalState(t *testing.T) {
	m := NewManager(Options{Size: 2})
	ok := m.Resume(State{
		Grid: layout(2, map[Cell]SerializedTile{
			{0, 0}: {Value: 2, Owner: 0}, {1, 0}: {Value: 4, Owner: 1},
			{0, 1}: {Value: 4, Owner: 0}, {1, 1}: {Value: 2, Owner: 1},
		}),
		Scores: []int{6, 6},
	})
	if !ok {
		t.Fatal("state rejected")
	}
	if !m.Over() || !m.Terminated() {
		t.Fatal("full grid without pairs should be over")
	}
	if w := m.Winners(); len(w) != 2 {
		t.Errorf("winners = %v, want both players on a tie", w)
	}
	if m.Move(DirLeft, false) {
		t.Error("move accepted after game over")
	}
}

func TestGameOverWinnersByScore(t *testing.T) {
	// the only move merges the 2s and the spawn fills the last cell
	out := &outbox{}
	m := NewManager(Options{Size: 2, Transport: out, Rand: &seqRand{vals: []float64{0.5}}})
	m.Resume(State{
		Grid: layout(2, map[Cell]SerializedTile{
			{0, 0}: {Value: 2, Owner: 0}, {1, 0}: {Value: 2, Owner: 1},
			{0, 1}: {Value: 16, Owner: 1}, {1, 1}: {Value: 8, Owner: 0},
		}),
		Scores: []int{10, 18},
	})
	if !m.Move(DirLeft, false) {
		t.Fatal("move rejected")
	}
	m.ApplyRemoteSeed(0.3, 1)

	// grid is now 4 2 / 16 8 with no pairs
	if !m.Over() {
		t.Fatalf("game should be over, grid %+v", m.Grid().Serialize())
	}
	scores := m.Scores()
	if scores[0] != 12 || scores[1] != 18 {
		t.Fatalf("scores = %v, want [12 18]", scores)
	}
	if w := m.Winners(); len(w) != 1 || w[0] != 1 {
		t.Errorf("winners = %v, want [1]", w)
	}
}

func TestWinAndKeepPlaying(t *testing.T) {
	out := &outbox{}
	m := NewManager(Options{WinValue: 16, Transport: out, Rand: &seqRand{vals: []float64{0.5}}})
	m.Resume(State{
		Grid: layout(4, map[Cell]SerializedTile{
			{0, 0}: {Value: 8, Owner: 1},
			{1, 0}: {Value: 8, Owner: 0},
		}),
		Scores: []int{8, 8},
	})
	if !m.Move(DirLeft, false) {
		t.Fatal("move rejected")
	}
	m.ApplyRemoteSeed(0.5, 1)

	if !m.Won() || !m.Terminated() {
		t.Fatal("reaching the win value should end play")
	}
	if w := m.Winners(); len(w) != 1 || w[0] != 0 {
		t.Errorf("winners = %v, want the mover", w)
	}
	if !m.Snapshot().IsWinner(0) {
		t.Error("snapshot should list the mover as winner")
	}

	before := m.Grid().Serialize()
	scores := m.Scores()
	m.KeepPlaying()
	if m.Terminated() {
		t.Error("keep playing should lift termination")
	}
	kept := NewGrid(4)
	if err := kept.Deserialize(before, Players); err != nil {
		t.Fatal(err)
	}
	if !m.Grid().Equal(kept) {
		t.Error("keep playing changed the grid")
	}
	if got := m.Scores(); got[0] != scores[0] || got[1] != scores[1] {
		t.Errorf("scores = %v, want %v", got, scores)
	}
	if m.Turn() != 1 || !m.Won() {
		t.Errorf("turn = %d won = %v, want the game to continue from turn 1", m.Turn(), m.Won())
	}
}

func TestRemoteMoveAfterWinContinuesPlay(t *testing.T) {
	out := &outbox{}
	m := NewManager(Options{WinValue: 16, Transport: out, Rand: &seqRand{vals: []float64{0.5}}})
	m.Resume(State{
		Grid: layout(4, map[Cell]SerializedTile{
			{0, 0}: {Value: 8, Owner: 1},
			{1, 0}: {Value: 8, Owner: 0},
		}),
		Scores: []int{8, 8},
	})
	m.Move(DirLeft, false)
	m.ApplyRemoteSeed(0.5, 1)
	if !m.Terminated() {
		t.Fatal("win should gate local play")
	}

	m.HandleMessage(MoveMessage(DirDown, 0.25, 2))
	if m.Turn() != 2 {
		t.Fatalf("turn = %d, want the peer's move applied", m.Turn())
	}
	if m.Terminated() || !m.Won() {
		t.Error("peer move past the win tile should continue the game")
	}
	if m.CurrentPlayer() != 0 {
		t.Errorf("current player = %d, want 0", m.CurrentPlayer())
	}
}

type bestScore struct{ best int }

func (b *bestScore) BestScore() int         { return b.best }
func (b *bestScore) SetBestScore(score int) { b.best = score }

func TestBestScoreTracksGlobalScore(t *testing.T) {
	keeper := &bestScore{best: 2}
	m := NewManager(Options{Scores: keeper, Rand: &seqRand{vals: []float64{0.5}}})
	m.Resume(State{
		Grid: layout(4, map[Cell]SerializedTile{
			{0, 0}: {Value: 4, Owner: 0},
			{0, 1}: {Value: 4, Owner: 1},
		}),
		Scores: []int{4, 4},
	})
	m.Move(DirUp, false)
	m.ApplyRemoteSeed(0.5, 1)

	if m.Score() != 8 {
		t.Errorf("score = %d, want 8", m.Score())
	}
	if keeper.best != 8 || m.Snapshot().BestScore != 8 {
		t.Errorf("best = %d, want 8", keeper.best)
	}
}

func TestMessageKinds(t *testing.T) {
	tests := []struct {
		msg  Message
		want MessageKind
	}{
		{ConnectedMessage(), KindConnected},
		{StateMessage(State{}), KindState},
		{MoveMessage(DirUp, 0, 3), KindMove},
		{SeedMessage(0, 3), KindSeed},
		{Message{}, KindUnknown},
	}
	for _, tt := range tests {
		if got := tt.msg.Kind(); got != tt.want {
			t.Errorf("%v kind = %s, want %s", tt.msg, got, tt.want)
		}
	}
	if err := MoveMessage(DirUp, 0, 1).Validate(); err != nil {
		t.Errorf("zero seed rejected: %v", err)
	}
}
