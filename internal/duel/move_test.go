package duel

import "testing"

func TestResolveCrossOwnerMerge(t *testing.T) {
	g := gridFrom(t, 4, map[Cell]SerializedTile{
		{0, 0}: {Value: 2, Owner: 0},
		{0, 1}: {Value: 2, Owner: 1},
	})
	scores := []int{2, 2}

	res := Resolve(g, DirUp, 0, scores)

	if !res.Moved {
		t.Fatal("expected movement")
	}
	if len(res.Merges) != 1 || res.Gained != 4 {
		t.Fatalf("merges = %d gained = %d, want 1 and 4", len(res.Merges), res.Gained)
	}
	tile := g.CellContent(Cell{0, 0})
	if tile == nil || tile.Value != 4 || tile.Owner != 0 {
		t.Fatalf("(0,0) = %+v, want value 4 owner 0", tile)
	}
	if g.CellOccupied(Cell{0, 1}) {
		t.Error("(0,1) should be empty after merge")
	}
	if scores[0] != 4 || scores[1] != 0 {
		t.Errorf("scores = %v, want [4 0]", scores)
	}
}

func TestResolveOwnership(t *testing.T) {
	tests := []struct {
		name      string
		moving    int // owner of the tile at (0,1)
		still     int // owner of the tile at (0,0)
		mover     int
		wantOwner int
		wantScore []int
	}{
		{"mover owns moving tile", 0, 1, 0, 0, []int{4, 0}},
		{"mover owns stationary tile", 1, 0, 0, 0, []int{4, 0}},
		{"mover owns both", 1, 1, 1, 1, []int{0, 4}},
		{"mover owns neither", 1, 1, 0, 1, []int{0, 4}},
		{"second player steals", 0, 1, 1, 1, []int{0, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := gridFrom(t, 4, map[Cell]SerializedTile{
				{0, 0}: {Value: 2, Owner: tt.still},
				{0, 1}: {Value: 2, Owner: tt.moving},
			})
			scores := make([]int, Players)
			scores[tt.still] += 2
			scores[tt.moving] += 2

			Resolve(g, DirUp, tt.mover, scores)

			tile := g.CellContent(Cell{0, 0})
			if tile == nil || tile.Owner != tt.wantOwner {
				t.Fatalf("merged tile = %+v, want owner %d", tile, tt.wantOwner)
			}
			if scores[0] != tt.wantScore[0] || scores[1] != tt.wantScore[1] {
				t.Errorf("scores = %v, want %v", scores, tt.wantScore)
			}
		})
	}
}

func TestResolveOneMergePerTile(t *testing.T) {
	tests := []struct {
		name   string
		column [4]int
		dir    Direction
		want   [4]int
	}{
		{"four equal up", [4]int{4, 4, 4, 4}, DirUp, [4]int{8, 8, 0, 0}},
		{"three equal up", [4]int{2, 2, 2, 0}, DirUp, [4]int{4, 2, 0, 0}},
		{"three equal down", [4]int{2, 2, 2, 0}, DirDown, [4]int{0, 0, 2, 4}},
		{"chain is not merged twice", [4]int{2, 2, 4, 0}, DirUp, [4]int{4, 4, 0, 0}},
		{"gap", [4]int{2, 0, 0, 2}, DirDown, [4]int{0, 0, 0, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tiles := make(map[Cell]SerializedTile)
			for y, v := range tt.column {
				if v != 0 {
					tiles[Cell{0, y}] = SerializedTile{Value: v}
				}
			}
			g := gridFrom(t, 4, tiles)

			Resolve(g, tt.dir, 0, make([]int, Players))

			var got [4]int
			for y := range 4 {
				if tile := g.CellContent(Cell{0, y}); tile != nil {
					got[y] = tile.Value
				}
			}
			if got != tt.want {
				t.Errorf("column %v moved %s = %v, want %v", tt.column, tt.dir, got, tt.want)
			}
		})
	}
}

func TestResolveNoMovement(t *testing.T) {
	g := gridFrom(t, 4, map[Cell]SerializedTile{
		{0, 0}: {Value: 2, Owner: 0},
		{1, 0}: {Value: 4, Owner: 1},
	})
	before := g.Serialize()
	scores := []int{2, 4}

	res := Resolve(g, DirUp, 0, scores)
	if res.Moved || len(res.Merges) != 0 {
		t.Errorf("up on a top row should not move: %+v", res)
	}
	res = Resolve(g, DirLeft, 0, scores)
	if res.Moved {
		t.Error("left on a packed left edge should not move")
	}

	want := NewGrid(4)
	_ = want.Deserialize(before, Players)
	if !g.Equal(want) {
		t.Error("grid changed without movement")
	}
}

func TestResolveInverseMoveKeepsValues(t *testing.T) {
	g := gridFrom(t, 4, map[Cell]SerializedTile{
		{0, 0}: {Value: 2, Owner: 0},
		{2, 0}: {Value: 4, Owner: 1},
		{1, 2}: {Value: 8, Owner: 1},
	})
	scores := []int{2, 12}

	Resolve(g, DirRight, 0, scores)
	Resolve(g, DirLeft, 1, scores)

	if g.SumValues() != 14 || len(g.Tiles()) != 3 {
		t.Errorf("sum = %d tiles = %d, want 14 and 3", g.SumValues(), len(g.Tiles()))
	}
	if scores[0] != 2 || scores[1] != 12 {
		t.Errorf("scores drifted: %v", scores)
	}
}

func TestResolveInverseMoveReturnsTile(t *testing.T) {
	tests := []struct {
		dir, inverse Direction
		start, far   Cell
	}{
		{DirRight, DirLeft, Cell{0, 1}, Cell{3, 1}},
		{DirLeft, DirRight, Cell{3, 2}, Cell{0, 2}},
		{DirDown, DirUp, Cell{2, 0}, Cell{2, 3}},
		{DirUp, DirDown, Cell{1, 3}, Cell{1, 0}},
	}
	for _, tt := range tests {
		g := gridFrom(t, 4, map[Cell]SerializedTile{tt.start: {Value: 2, Owner: 1}})
		scores := []int{0, 2}

		if !Resolve(g, tt.dir, 0, scores).Moved {
			t.Fatalf("%v: tile at %v did not move", tt.dir, tt.start)
		}
		if tile := g.CellContent(tt.far); tile == nil || tile.Value != 2 {
			t.Fatalf("%v: tile not at %v", tt.dir, tt.far)
		}
		if !Resolve(g, tt.inverse, 1, scores).Moved {
			t.Fatalf("%v: tile at %v did not move back", tt.inverse, tt.far)
		}
		tile := g.CellContent(tt.start)
		if tile == nil || tile.Value != 2 || tile.Owner != 1 {
			t.Errorf("%v then %v: (%d,%d) = %+v, want the tile back", tt.dir, tt.inverse, tt.start.X, tt.start.Y, tile)
		}
		if len(g.Tiles()) != 1 || scores[1] != 2 {
			t.Errorf("%v then %v: tiles = %d scores = %v", tt.dir, tt.inverse, len(g.Tiles()), scores)
		}
	}
}

func TestResolveConservesOwnedValue(t *testing.T) {
	g := gridFrom(t, 4, map[Cell]SerializedTile{
		{0, 0}: {Value: 2, Owner: 0},
		{0, 1}: {Value: 2, Owner: 1},
		{1, 0}: {Value: 4, Owner: 1},
		{1, 3}: {Value: 4, Owner: 0},
		{2, 2}: {Value: 8, Owner: 0},
		{3, 2}: {Value: 8, Owner: 1},
		{3, 3}: {Value: 2, Owner: 1},
	})
	scores := ownedValues(g)

	for i, dir := range []Direction{DirUp, DirLeft, DirDown, DirRight, DirUp} {
		Resolve(g, dir, i%Players, scores)
		owned := ownedValues(g)
		if scores[0] != owned[0] || scores[1] != owned[1] {
			t.Fatalf("after %s scores = %v, owned = %v", dir, scores, owned)
		}
	}
}

func ownedValues(g *Grid) []int {
	out := make([]int, Players)
	for _, tile := range g.Tiles() {
		out[tile.Owner] += tile.Value
	}
	return out
}

func TestResolveWin(t *testing.T) {
	g := gridFrom(t, 4, map[Cell]SerializedTile{
		{0, 0}: {Value: 8, Owner: 0},
		{1, 0}: {Value: 8, Owner: 0},
	})

	res := Resolver{WinValue: 16}.Resolve(g, DirLeft, 0, []int{16, 0})
	if !res.Won {
		t.Error("merge to win value should win")
	}

	res = Resolver{WinValue: 64}.Resolve(g, DirRight, 0, []int{16, 0})
	if res.Won {
		t.Error("no merge should not win")
	}
}

func TestMovesAvailable(t *testing.T) {
	tests := []struct {
		name  string
		tiles map[Cell]SerializedTile
		want  bool
	}{
		{
			name:  "empty cell",
			tiles: map[Cell]SerializedTile{{0, 0}: {Value: 2}, {1, 0}: {Value: 4}, {0, 1}: {Value: 8}},
			want:  true,
		},
		{
			name: "full checkerboard",
			tiles: map[Cell]SerializedTile{
				{0, 0}: {Value: 2}, {1, 0}: {Value: 4},
				{0, 1}: {Value: 4}, {1, 1}: {Value: 2},
			},
			want: false,
		},
		{
			name: "full with horizontal pair",
			tiles: map[Cell]SerializedTile{
				{0, 0}: {Value: 2}, {1, 0}: {Value: 2},
				{0, 1}: {Value: 4}, {1, 1}: {Value: 8},
			},
			want: true,
		},
		{
			name: "full with vertical pair",
			tiles: map[Cell]SerializedTile{
				{0, 0}: {Value: 2}, {1, 0}: {Value: 4},
				{0, 1}: {Value: 2}, {1, 1}: {Value: 8},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := gridFrom(t, 2, tt.tiles)
			if got := MovesAvailable(g); got != tt.want {
				t.Errorf("MovesAvailable = %v, want %v", got, tt.want)
			}
		})
	}
}
