package duel

// Cell is a grid coordinate.
type Cell struct {
	X, Y int
}

// Add returns the cell one step along v.
func (c Cell) Add(v Cell) Cell {
	return Cell{X: c.X + v.X, Y: c.Y + v.Y}
}

// TileID identifies a tile within one process. IDs are never serialized and
// carry no meaning across peers.
type TileID uint64

// Tile is a numbered tile owned by one player.
type Tile struct {
	ID    TileID
	Pos   Cell
	Value int
	Owner int
}

func isPowerOfTwo(v int) bool {
	return v >= 2 && v&(v-1) == 0
}
