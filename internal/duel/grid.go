package duel

import (
	"errors"
	"fmt"
	"math"
)

// ErrBadState is returned when serialized state cannot be restored.
var ErrBadState = errors.New("duel: malformed state")

// Grid is a size x size board. Cells are stored as cells[x][y].
type Grid struct {
	size   int
	cells  [][]*Tile
	nextID TileID
}

// NewGrid creates an empty grid.
func NewGrid(size int) *Grid {
	if size < 1 {
		panic(fmt.Sprintf("duel: invalid grid size %d", size))
	}
	g := &Grid{size: size}
	g.cells = make([][]*Tile, size)
	for x := range g.cells {
		g.cells[x] = make([]*Tile, size)
	}
	return g
}

// Size returns the grid dimension.
func (g *Grid) Size() int {
	return g.size
}

// NewTile allocates a tile with a fresh identity. It is not inserted.
func (g *Grid) NewTile(pos Cell, value, owner int) *Tile {
	g.nextID++
	return &Tile{ID: g.nextID, Pos: pos, Value: value, Owner: owner}
}

// EachCell visits every cell, x outer and y inner.
func (g *Grid) EachCell(fn func(x, y int, t *Tile)) {
	for x := range g.size {
		for y := range g.size {
			fn(x, y, g.cells[x][y])
		}
	}
}

// AvailableCells returns the empty cells in EachCell order.
func (g *Grid) AvailableCells() []Cell {
	var cells []Cell
	g.EachCell(func(x, y int, t *Tile) {
		if t == nil {
			cells = append(cells, Cell{X: x, Y: y})
		}
	})
	return cells
}

// CellsAvailable reports whether at least one cell is empty.
func (g *Grid) CellsAvailable() bool {
	for x := range g.size {
		for y := range g.size {
			if g.cells[x][y] == nil {
				return true
			}
		}
	}
	return false
}

// RandomAvailableCell picks an empty cell using seed in [0,1).
// Callers must check CellsAvailable first.
func (g *Grid) RandomAvailableCell(seed float64) Cell {
	cells := g.AvailableCells()
	if len(cells) == 0 {
		panic("duel: RandomAvailableCell on a full grid")
	}
	idx := int(math.Floor(seed * float64(len(cells))))
	// seed is expected in [0,1); clamp so a seed of exactly 1 stays in range
	if idx >= len(cells) {
		idx = len(cells) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return cells[idx]
}

// WithinBounds reports whether c lies on the grid.
func (g *Grid) WithinBounds(c Cell) bool {
	return c.X >= 0 && c.X < g.size && c.Y >= 0 && c.Y < g.size
}

// CellAvailable reports whether c is on the grid and empty.
func (g *Grid) CellAvailable(c Cell) bool {
	return g.WithinBounds(c) && g.cells[c.X][c.Y] == nil
}

// CellOccupied reports whether c is on the grid and holds a tile.
func (g *Grid) CellOccupied(c Cell) bool {
	return g.CellContent(c) != nil
}

// CellContent returns the tile at c, or nil when c is empty or off the grid.
func (g *Grid) CellContent(c Cell) *Tile {
	if !g.WithinBounds(c) {
		return nil
	}
	return g.cells[c.X][c.Y]
}

// InsertTile places t at t.Pos. Inserting onto an occupied or off-grid cell
// is a programming error.
func (g *Grid) InsertTile(t *Tile) {
	if !g.WithinBounds(t.Pos) {
		panic(fmt.Sprintf("duel: insert out of bounds at %v", t.Pos))
	}
	if g.cells[t.Pos.X][t.Pos.Y] != nil {
		panic(fmt.Sprintf("duel: insert onto occupied cell %v", t.Pos))
	}
	g.cells[t.Pos.X][t.Pos.Y] = t
}

// RemoveTile clears the cell at t.Pos.
func (g *Grid) RemoveTile(t *Tile) {
	g.cells[t.Pos.X][t.Pos.Y] = nil
}

// moveTile relocates t to c.
func (g *Grid) moveTile(t *Tile, c Cell) {
	g.cells[t.Pos.X][t.Pos.Y] = nil
	g.cells[c.X][c.Y] = t
	t.Pos = c
}

// Tiles returns every tile in EachCell order.
func (g *Grid) Tiles() []*Tile {
	var tiles []*Tile
	g.EachCell(func(_, _ int, t *Tile) {
		if t != nil {
			tiles = append(tiles, t)
		}
	})
	return tiles
}

// SumValues returns the total of all tile values.
func (g *Grid) SumValues() int {
	sum := 0
	for _, t := range g.Tiles() {
		sum += t.Value
	}
	return sum
}

// MaxTile returns the highest tile value on the grid.
func (g *Grid) MaxTile() int {
	maxVal := 0
	for _, t := range g.Tiles() {
		if t.Value > maxVal {
			maxVal = t.Value
		}
	}
	return maxVal
}

// Equal compares occupancy, values and owners. Tile identities are ignored.
func (g *Grid) Equal(other *Grid) bool {
	if other == nil || g.size != other.size {
		return false
	}
	for x := range g.size {
		for y := range g.size {
			a, b := g.cells[x][y], other.cells[x][y]
			if (a == nil) != (b == nil) {
				return false
			}
			if a != nil && (a.Value != b.Value || a.Owner != b.Owner) {
				return false
			}
		}
	}
	return true
}

// SerializedTile is the wire form of an occupied cell.
type SerializedTile struct {
	Value int `json:"value"`
	Owner int `json:"owner"`
}

// SerializedGrid is the wire form of a grid. Cells is indexed [x][y];
// nil entries are empty cells.
type SerializedGrid struct {
	Size  int                 `json:"size"`
	Cells [][]*SerializedTile `json:"cells"`
}

// Serialize captures the grid occupancy.
func (g *Grid) Serialize() SerializedGrid {
	out := SerializedGrid{Size: g.size, Cells: make([][]*SerializedTile, g.size)}
	for x := range g.size {
		out.Cells[x] = make([]*SerializedTile, g.size)
		for y := range g.size {
			if t := g.cells[x][y]; t != nil {
				out.Cells[x][y] = &SerializedTile{Value: t.Value, Owner: t.Owner}
			}
		}
	}
	return out
}

// Deserialize replaces the grid contents with data. The grid is left
// untouched when data is malformed.
func (g *Grid) Deserialize(data SerializedGrid, players int) error {
	if data.Size != g.size || len(data.Cells) != g.size {
		return fmt.Errorf("%w: grid size %d, want %d", ErrBadState, data.Size, g.size)
	}
	for x, column := range data.Cells {
		if len(column) != g.size {
			return fmt.Errorf("%w: column %d has %d cells", ErrBadState, x, len(column))
		}
		for y, st := range column {
			if st == nil {
				continue
			}
			if !isPowerOfTwo(st.Value) {
				return fmt.Errorf("%w: value %d at (%d,%d)", ErrBadState, st.Value, x, y)
			}
			if st.Owner < 0 || st.Owner >= players {
				return fmt.Errorf("%w: owner %d at (%d,%d)", ErrBadState, st.Owner, x, y)
			}
		}
	}

	for x := range g.size {
		for y := range g.size {
			g.cells[x][y] = nil
			if st := data.Cells[x][y]; st != nil {
				g.InsertTile(g.NewTile(Cell{X: x, Y: y}, st.Value, st.Owner))
			}
		}
	}
	return nil
}
