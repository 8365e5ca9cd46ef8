package tetris

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

// Randomizer picks the shape of the next piece.
type Randomizer interface {
	Next() Shape
	// Reset starts over as for a fresh game.
	Reset()
}

const (
	RandomUniform = "uniform"
	RandomBag     = "bag"
)

// NewRandomizer returns the randomizer called name using rng as its source.
func NewRandomizer(name string, rng *rand.Rand) (Randomizer, error) {
	switch name {
	case RandomUniform, "":
		return &uniform{rng: rng}, nil
	case RandomBag:
		return newBag(rng), nil
	default:
		return nil, fmt.Errorf("unknown randomizer %q", name)
	}
}

// uniform draws every shape with the same probability, independently.
type uniform struct {
	rng *rand.Rand
}

func (u *uniform) Next() Shape {
	return Shapes[u.rng.IntN(len(Shapes))]
}

func (u *uniform) Reset() {}

// bag deals the seven shapes in a shuffled order before refilling.
// Based on https://tetris.wiki/Random_Generator
type bag struct {
	rng   *rand.Rand
	bag   []Shape
	first bool
}

func newBag(rng *rand.Rand) *bag {
	b := &bag{rng: rng, first: true}
	b.fill()
	return b
}

func (b *bag) fill() {
	b.bag = slices.Clone(Shapes)
	b.rng.Shuffle(len(b.bag), func(i, j int) { b.bag[i], b.bag[j] = b.bag[j], b.bag[i] })
	if b.first {
		// the first piece of a game is never S, Z or O: it would force an overhang.
		for slices.Contains([]Shape{S, Z, O}, b.bag[0]) {
			k := 1 + b.rng.IntN(len(b.bag)-1)
			b.bag[0], b.bag[k] = b.bag[k], b.bag[0]
		}
	}
}

func (b *bag) Reset() {
	b.first = true
	b.fill()
}

func (b *bag) Next() Shape {
	if len(b.bag) == 0 {
		b.fill()
	}
	s := b.bag[0]
	b.bag = b.bag[1:]
	b.first = false
	return s
}

// Spawner produces new pieces: random shape, random orientation, and a fixed
// position centered at the top of the playfield.
type Spawner struct {
	rng        *rand.Rand
	randomizer Randomizer
}

// NewSpawner returns a spawner seeded with seed. The same seed and
// randomizer always produce the same sequence of pieces.
func NewSpawner(seed uint64, randomizer string) (*Spawner, error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	r, err := NewRandomizer(randomizer, rng)
	if err != nil {
		return nil, err
	}
	return &Spawner{rng: rng, randomizer: r}, nil
}

// Reset restarts the randomizer for a new game. The random source keeps going.
func (s *Spawner) Reset() {
	s.randomizer.Reset()
}

// Spawn returns a new piece at its spawn position.
func (s *Spawner) Spawn() *Tetromino {
	p := NewPiece(s.randomizer.Next())
	for range s.rng.IntN(4) {
		p.Rotate(Clockwise)
	}
	return AtSpawn(p)
}

// AtSpawn puts p at the spawn position: horizontally centered, top-aligned.
//
//	.	0 1 2 3 4 5 6 7 8 9
//	17	. . . X . . . . . .
//	16	. . . X X X . . . .
//	15	. . . . . . . . . .
func AtSpawn(p Piece) *Tetromino {
	return &Tetromino{
		Piece: p,
		X:     (Width - p.Size) / 2,
		Y:     Height - p.Size,
	}
}
