package tetris

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Config holds the simulation timing and rules. Durations are simulated
// time: they're converted to tick deadlines, never polled on the wall clock.
type Config struct {
	TickRate       int           // Simulation steps per simulated second.
	SplashDuration time.Duration // How long the splash screen stays up.
	MoveRepeat     time.Duration // Repeat interval of a held left/right.
	SoftDropRepeat time.Duration // Repeat interval of a held soft drop.
	FlashPeriod    time.Duration // Half period of the full-row highlight.
	DeletionDelay  time.Duration // Time between locking and removing full rows.
	FillRowDelay   time.Duration // Per-row delay of the game over animation.
	QuitDelay      time.Duration // Time the quit screen stays up.
	StartLevel     int
	Randomizer     string // RandomUniform or RandomBag.
	Seed           uint64
	MusicTracks    int // Number of selectable music tracks.
}

func DefaultConfig() Config {
	return Config{
		TickRate:       60,
		SplashDuration: 2 * time.Second,
		MoveRepeat:     100 * time.Millisecond,
		SoftDropRepeat: 50 * time.Millisecond,
		FlashPeriod:    100 * time.Millisecond,
		DeletionDelay:  500 * time.Millisecond,
		FillRowDelay:   40 * time.Millisecond,
		QuitDelay:      time.Second,
		StartLevel:     1,
		Randomizer:     RandomUniform,
		MusicTracks:    2,
	}
}

// Validate reports the first setting that would stall the simulation.
func (c Config) Validate() error {
	switch {
	case c.TickRate <= 0:
		return errors.New("tick rate must be positive")
	case c.StartLevel < 1:
		return errors.New("start level must be at least 1")
	case c.MusicTracks < 1:
		return errors.New("at least one music track is required")
	}
	return nil
}

// Seeded returns c with a random Seed when none is set. The seed is kept in
// the returned config so the run can be replayed.
func (c Config) Seeded() Config {
	for c.Seed == 0 {
		c.Seed = rand.Uint64()
	}
	return c
}

// Quantum is the simulated time a single step advances.
func (c Config) Quantum() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// gravity returns how long a piece waits before falling one row.
// Based on https://tetris.wiki/Marathon
//
// Time = (0.8-((Level-1)*0.007))^(Level-1)
func gravity(level int) time.Duration {
	switch {
	case level < 1:
		level = 1
	case level > 20:
		level = 20
	}
	seconds := math.Pow(0.8-float64(level-1)*0.007, float64(level-1))

	return time.Duration(seconds * float64(time.Second))
}

// levelFor returns the level after clearing lines. Every 10 lines is a
// level up and the level never goes below the starting one.
func levelFor(start, lines int) int {
	return max(start, lines/10+1)
}

// lineScores is indexed by the number of rows cleared at once.
var lineScores = [...]int{0, 40, 100, 300, 1200}

func scoreFor(rows, level int) int {
	if rows >= len(lineScores) {
		rows = len(lineScores) - 1
	}
	return lineScores[rows] * level
}
