package duel

// Direction represents a move direction. The numeric values are part of the
// wire format and must not be reordered.
type Direction int

const (
	DirUp Direction = iota
	DirRight
	DirDown
	DirLeft
)

// Directions lists every direction in wire order.
var Directions = [...]Direction{DirUp, DirRight, DirDown, DirLeft}

// Valid reports whether d is one of the four cardinal directions.
func (d Direction) Valid() bool {
	return d >= DirUp && d <= DirLeft
}

// Vector returns the unit step for d. Invalid directions yield the zero vector.
func (d Direction) Vector() Cell {
	switch d {
	case DirUp:
		return Cell{X: 0, Y: -1}
	case DirRight:
		return Cell{X: 1, Y: 0}
	case DirDown:
		return Cell{X: 0, Y: 1}
	case DirLeft:
		return Cell{X: -1, Y: 0}
	default:
		return Cell{}
	}
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	return (d + 2) % 4
}

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirRight:
		return "right"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	default:
		return "unknown"
	}
}
