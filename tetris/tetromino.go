package tetris

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
)

type Shape string

const (
	I Shape = "I"
	J Shape = "J"
	L Shape = "L"
	O Shape = "O"
	S Shape = "S"
	T Shape = "T"
	Z Shape = "Z"
)

// Shapes lists every shape in catalog order.
var Shapes = []Shape{I, J, L, O, S, T, Z}

// MaxSize is the side of the biggest bounding box (the I piece).
const MaxSize = 4

// Direction of a rotation.
type Direction int

const (
	Clockwise Direction = iota
	CounterClockwise
)

func (d Direction) String() string {
	if d == Clockwise {
		return "cw"
	}
	return "ccw"
}

// Grid is a square cell mask. Only the first size x size cells are meaningful.
// Indexes are [row][col] with row 0 at the bottom, same as the playfield.
type Grid [MaxSize][MaxSize]bool

// Cells yields the (col, row) of every set cell inside the size x size box.
func (g *Grid) Cells(size int) iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		for r := range size {
			for c := range size {
				if g[r][c] && !yield(c, r) {
					return
				}
			}
		}
	}
}

// rotate returns the grid turned 90 degrees in the given direction.
//
//	clockwise:         rotated[c][r] = g[r][size-1-c]
//	counter-clockwise: rotated[c][r] = g[size-1-r][c]
func (g *Grid) rotate(size int, d Direction) Grid {
	var rotated Grid
	for r := range size {
		for c := range size {
			if d == Clockwise {
				rotated[c][r] = g[r][size-1-c]
			} else {
				rotated[c][r] = g[size-1-r][c]
			}
		}
	}
	return rotated
}

// Piece is a shape in a given orientation.
//
// CW and CCW are collision masks: they hold only the cells that the piece
// would newly cover by rotating that way, never the rotated shape itself.
// Cells shared by both orientations are already covered by the piece, so
// testing the mask is enough to know whether the rotation fits.
type Piece struct {
	Shape  Shape
	Size   int
	Design Grid
	CW     Grid
	CCW    Grid
}

// Mask returns the collision mask for a rotation in direction d.
func (p *Piece) Mask(d Direction) *Grid {
	if d == Clockwise {
		return &p.CW
	}
	return &p.CCW
}

// Rotate turns all three grids together so they stay consistent.
// Callers must have checked the mask first: there is no rollback.
func (p *Piece) Rotate(d Direction) {
	p.Design = p.Design.rotate(p.Size, d)
	p.CW = p.CW.rotate(p.Size, d)
	p.CCW = p.CCW.rotate(p.Size, d)
}

// Tetromino is a piece placed on the playfield.
// X and Y are the playfield column and row of the grid's bottom-left cell.
type Tetromino struct {
	Piece
	X, Y int
}

func (t *Tetromino) copy() *Tetromino {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

var errPatternSize = errors.New("pattern size mismatch")

// pattern is the textual definition of a piece. Rows are written top to bottom.
type pattern struct {
	size            int
	design, cw, ccw string
}

func rows(r ...string) string { return strings.Join(r, "") }

// patterns is the rotation table. The masks mark the cells each rotation
// newly covers from the listed orientation. Swapping this table for another
// rotation system doesn't touch the collision code.
var patterns = map[Shape]pattern{
	I: {
		size:   4,
		design: rows("....", "XXXX", "....", "...."),
		cw:     rows("..X.", "....", "..X.", "..X."),
		ccw:    rows(".X..", "....", ".X..", ".X.."),
	},
	J: {
		size:   3,
		design: rows("X..", "XXX", "..."),
		cw:     rows(".XX", "...", ".X."),
		ccw:    rows(".X.", "...", "XX."),
	},
	L: {
		size:   3,
		design: rows("..X", "XXX", "..."),
		cw:     rows(".X.", "...", ".XX"),
		ccw:    rows("XX.", "...", ".X."),
	},
	O: {
		size:   2,
		design: rows("XX", "XX"),
		cw:     rows("..", ".."),
		ccw:    rows("..", ".."),
	},
	S: {
		size:   3,
		design: rows(".XX", "XX.", "..."),
		cw:     rows("...", "..X", "..X"),
		ccw:    rows("X..", "...", ".X."),
	},
	T: {
		size:   3,
		design: rows(".X.", "XXX", "..."),
		cw:     rows("...", "...", ".X."),
		ccw:    rows("...", "...", ".X."),
	},
	Z: {
		size:   3,
		design: rows("XX.", ".XX", "..."),
		cw:     rows("..X", "...", ".X."),
		ccw:    rows("...", "X..", "X.."),
	},
}

// parsePattern reads a size x size pattern where 'X' is a set cell.
// The first text row is the top of the grid.
func parsePattern(s string, size int) (Grid, error) {
	var g Grid
	if size < 1 || size > MaxSize || len(s) != size*size {
		return g, fmt.Errorf("%w: want %d cells, got %d", errPatternSize, size*size, len(s))
	}
	for i, ch := range s {
		if ch == 'X' {
			g[size-1-i/size][i%size] = true
		}
	}
	return g, nil
}

var catalog = buildCatalog(patterns, slog.Default())

// buildCatalog parses every pattern once. A malformed pattern is logged and
// its grid left empty so the rest of the catalog stays usable.
func buildCatalog(p map[Shape]pattern, logger *slog.Logger) map[Shape]Piece {
	c := make(map[Shape]Piece, len(p))
	for shape, pt := range p {
		piece := Piece{Shape: shape, Size: pt.size}
		for _, g := range []struct {
			name string
			src  string
			dst  *Grid
		}{
			{"design", pt.design, &piece.Design},
			{"cw", pt.cw, &piece.CW},
			{"ccw", pt.ccw, &piece.CCW},
		} {
			grid, err := parsePattern(g.src, pt.size)
			if err != nil {
				logger.Error("invalid piece pattern",
					slog.String("shape", string(shape)),
					slog.String("grid", g.name),
					slog.String("error", err.Error()))
				continue
			}
			*g.dst = grid
		}
		c[shape] = piece
	}
	return c
}

// NewPiece returns the catalog piece for shape in its spawn orientation.
func NewPiece(shape Shape) Piece {
	return catalog[shape]
}
