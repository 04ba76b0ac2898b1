package duel

// DefaultWinValue is the tile that wins the game.
const DefaultWinValue = 2048

// Merge records one merge produced by a pass.
type Merge struct {
	Tile *Tile     // the merged tile
	From [2]TileID // moving tile, stationary tile
	At   Cell
}

// MoveResult summarizes one resolution pass.
type MoveResult struct {
	Moved  bool
	Merges []Merge
	Gained int  // sum of merged tile values, for the global score
	Won    bool // a merge reached the win value
}

// traversals holds the visiting order for each axis.
type traversals struct {
	x, y []int
}

// buildTraversals orders each axis so tiles nearest the target edge come
// first.
func buildTraversals(size int, vector Cell) traversals {
	t := traversals{x: make([]int, size), y: make([]int, size)}
	for pos := range size {
		t.x[pos] = pos
		t.y[pos] = pos
	}
	if vector.X == 1 {
		reverse(t.x)
	}
	if vector.Y == 1 {
		reverse(t.y)
	}
	return t
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// findFarthestPosition walks from cell along vector. farthest is the last
// empty cell reached, next the first blocked cell beyond it.
func findFarthestPosition(g *Grid, cell, vector Cell) (farthest, next Cell) {
	for {
		farthest = cell
		cell = farthest.Add(vector)
		if !g.CellAvailable(cell) {
			return farthest, cell
		}
	}
}

// Resolver performs directional passes over a grid.
type Resolver struct {
	WinValue int
}

// Resolve runs one pass with the default win value.
func Resolve(g *Grid, dir Direction, mover int, scores []int) MoveResult {
	return Resolver{WinValue: DefaultWinValue}.Resolve(g, dir, mover, scores)
}

// Resolve slides and merges every tile on g toward dir. scores is updated in
// place with ownership transfers caused by merges between different owners.
func (r Resolver) Resolve(g *Grid, dir Direction, mover int, scores []int) MoveResult {
	var result MoveResult
	if !dir.Valid() {
		return result
	}

	winValue := r.WinValue
	if winValue <= 0 {
		winValue = DefaultWinValue
	}

	vector := dir.Vector()
	order := buildTraversals(g.Size(), vector)
	// merged tile -> sources; only valid for this pass
	mergedFrom := make(map[TileID][2]TileID)

	for _, x := range order.x {
		for _, y := range order.y {
			cell := Cell{X: x, Y: y}
			tile := g.CellContent(cell)
			if tile == nil {
				continue
			}

			farthest, nextCell := findFarthestPosition(g, cell, vector)
			next := g.CellContent(nextCell)

			if next != nil && next.Value == tile.Value && !wasMerged(mergedFrom, next) {
				owner := tile.Owner
				if tile.Owner == mover || next.Owner == mover {
					owner = mover
				}
				merged := g.NewTile(nextCell, tile.Value*2, owner)
				mergedFrom[merged.ID] = [2]TileID{tile.ID, next.ID}

				g.RemoveTile(tile)
				g.RemoveTile(next)
				g.InsertTile(merged)
				tile.Pos = nextCell

				if next.Owner != tile.Owner {
					scores[next.Owner] += transferSign(next.Owner, owner) * tile.Value
					scores[tile.Owner] += transferSign(tile.Owner, owner) * tile.Value
				}
				result.Gained += merged.Value
				result.Merges = append(result.Merges, Merge{
					Tile: merged,
					From: [2]TileID{tile.ID, next.ID},
					At:   nextCell,
				})

				if merged.Value == winValue {
					result.Won = true
				}
			} else if farthest != cell {
				g.moveTile(tile, farthest)
			}

			if tile.Pos != cell {
				result.Moved = true
			}
		}
	}

	return result
}

func wasMerged(mergedFrom map[TileID][2]TileID, t *Tile) bool {
	_, ok := mergedFrom[t.ID]
	return ok
}

func transferSign(owner, mergedOwner int) int {
	if owner == mergedOwner {
		return 1
	}
	return -1
}

// TileMatchesAvailable reports whether any two orthogonally adjacent tiles
// share a value.
func TileMatchesAvailable(g *Grid) bool {
	for x := range g.Size() {
		for y := range g.Size() {
			tile := g.CellContent(Cell{X: x, Y: y})
			if tile == nil {
				continue
			}
			for _, dir := range Directions {
				other := g.CellContent(tile.Pos.Add(dir.Vector()))
				if other != nil && other.Value == tile.Value {
					return true
				}
			}
		}
	}
	return false
}

// MovesAvailable reports whether any move can change g.
func MovesAvailable(g *Grid) bool {
	return g.CellsAvailable() || TileMatchesAvailable(g)
}
