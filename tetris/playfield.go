package tetris

import (
	"errors"
	"fmt"
)

const (
	// Width and Height of the playfield in cells.
	// Columns are 0 > 9 left to right and represent the X axis.
	// Rows are 0 > 17 bottom to top and represent the Y axis.
	Width  = 10
	Height = 18
)

var errOccupied = errors.New("cell already occupied")

// Cell is a single playfield cell. The zero value is an empty cell.
type Cell struct {
	Occupied bool
	Shape    Shape
}

// Playfield is the stack the pieces fall into. It's a plain value: copying
// it copies every cell.
type Playfield struct {
	Cells [Height][Width]Cell
}

// InBounds reports whether (x, y) is a playfield coordinate.
func InBounds(x, y int) bool {
	return x >= 0 && x < Width && y >= 0 && y < Height
}

// At returns the cell at (x, y). Out of bounds coordinates read as empty.
func (p *Playfield) At(x, y int) Cell {
	if !InBounds(x, y) {
		return Cell{}
	}
	return p.Cells[y][x]
}

// Occupied reports whether (x, y) is inside the playfield and occupied.
func (p *Playfield) Occupied(x, y int) bool {
	return InBounds(x, y) && p.Cells[y][x].Occupied
}

// Lock copies the tetromino's cells into the playfield.
// Cells that are already occupied are left untouched and reported in the
// returned error: prior collision checks should make that impossible.
func (p *Playfield) Lock(t *Tetromino) error {
	var errs []error
	for c, r := range t.Design.Cells(t.Size) {
		x, y := t.X+c, t.Y+r
		if !InBounds(x, y) {
			continue
		}
		if p.Cells[y][x].Occupied {
			errs = append(errs, fmt.Errorf("%w at (%d,%d)", errOccupied, x, y))
			continue
		}
		p.Cells[y][x] = Cell{Occupied: true, Shape: t.Shape}
	}
	return errors.Join(errs...)
}

// rowFull reports whether every column of row is occupied.
func (p *Playfield) rowFull(row int) bool {
	for _, c := range p.Cells[row] {
		if !c.Occupied {
			return false
		}
	}
	return true
}

// rowEmpty reports whether no column of row is occupied.
func (p *Playfield) rowEmpty(row int) bool {
	for _, c := range p.Cells[row] {
		if c.Occupied {
			return false
		}
	}
	return true
}

// FullRows returns the index of every full row, in ascending order.
func (p *Playfield) FullRows() []int {
	var rows []int
	for r := range Height {
		if p.rowFull(r) {
			rows = append(rows, r)
		}
	}
	return rows
}

// ClearRow vacates every cell of row.
func (p *Playfield) ClearRow(row int) {
	if row < 0 || row >= Height {
		return
	}
	p.Cells[row] = [Width]Cell{}
}

// FillRow occupies every cell of row with shape.
func (p *Playfield) FillRow(row int, shape Shape) {
	if row < 0 || row >= Height {
		return
	}
	for x := range Width {
		p.Cells[row][x] = Cell{Occupied: true, Shape: shape}
	}
}

// Consolidate compacts the playfield: non-empty rows are copied down from
// row 0 keeping their relative order, empty rows end up on top.
//
//	before      after
//	3 . X .     3 . . .
//	2 . . .     2 . . .
//	1 X . .     1 . X .
//	0 . . .     0 X . .
func (p *Playfield) Consolidate() {
	var compact [Height][Width]Cell
	n := 0
	for r := range Height {
		if p.rowEmpty(r) {
			continue
		}
		compact[n] = p.Cells[r]
		n++
	}
	p.Cells = compact
}

// OccupiedRows counts the rows with at least one occupied cell.
func (p *Playfield) OccupiedRows() int {
	n := 0
	for r := range Height {
		if !p.rowEmpty(r) {
			n++
		}
	}
	return n
}

// Reset vacates every cell.
func (p *Playfield) Reset() {
	p.Cells = [Height][Width]Cell{}
}

// MoveCollides reports whether the tetromino translated by (dx, dy) would
// leave the playfield or overlap an occupied cell.
func MoveCollides(p *Playfield, t *Tetromino, dx, dy int) bool {
	for c, r := range t.Design.Cells(t.Size) {
		x, y := t.X+c+dx, t.Y+r+dy
		if !InBounds(x, y) || p.Cells[y][x].Occupied {
			return true
		}
	}
	return false
}

// RotationCollides reports whether rotating the tetromino in direction d
// would cover a cell outside the playfield or already occupied. Only the
// rotation mask is tested, at the current position.
func RotationCollides(p *Playfield, t *Tetromino, d Direction) bool {
	mask := t.Mask(d)
	for c, r := range mask.Cells(t.Size) {
		x, y := t.X+c, t.Y+r
		if !InBounds(x, y) || p.Cells[y][x].Occupied {
			return true
		}
	}
	return false
}

// DropDistance is the number of rows the tetromino can fall before landing.
func DropDistance(p *Playfield, t *Tetromino) int {
	d := 0
	// an empty design never collides, so the loop is bounded by the field height.
	for d < Height+MaxSize && !MoveCollides(p, t, 0, -(d+1)) {
		d++
	}
	return d
}
