package audio

import (
	"math"
	"math/rand/v2"
	"time"
)

// Wave is the shape of an oscillator.
type Wave int

const (
	Sine Wave = iota
	Square
	Triangle
	Noise
)

// Note is a pitch held for a duration. A zero Freq is a rest.
type Note struct {
	Freq float64
	Dur  time.Duration
}

// Tone renders one note of wave w at the given gain, with short attack and
// release ramps to avoid clicks.
func Tone(w Wave, freq float64, d time.Duration, gain float64) [][2]float64 {
	n := SampleRate.N(d)
	frames := make([][2]float64, n)
	if freq <= 0 && w != Noise {
		return frames
	}

	// fixed seed: the same sound every time it's generated.
	rng := rand.New(rand.NewPCG(uint64(freq), uint64(n)))
	phase, inc := 0.0, freq/float64(SampleRate)
	for i := range frames {
		var v float64
		switch w {
		case Sine:
			v = math.Sin(2 * math.Pi * phase)
		case Square:
			v = 1
			if phase >= 0.5 {
				v = -1
			}
		case Triangle:
			v = 4*math.Abs(phase-0.5) - 1
		case Noise:
			v = rng.Float64()*2 - 1
		}
		frames[i] = [2]float64{v * gain, v * gain}

		phase += inc
		if phase >= 1 {
			phase -= 1
		}
	}
	envelope(frames, 5*time.Millisecond, 20*time.Millisecond)
	return frames
}

// envelope applies linear attack and release ramps in place.
func envelope(frames [][2]float64, attack, release time.Duration) {
	total := len(frames)
	a := min(SampleRate.N(attack), total/2)
	r := min(SampleRate.N(release), total-a)
	for i := range frames {
		vol := 1.0
		switch {
		case i < a:
			vol = float64(i) / float64(a)
		case i >= total-r:
			vol = float64(total-i) / float64(r)
		}
		frames[i][0] *= vol
		frames[i][1] *= vol
	}
}

// Sequence renders notes one after another.
func Sequence(w Wave, gain float64, notes ...Note) [][2]float64 {
	var out [][2]float64
	for _, n := range notes {
		out = append(out, Tone(w, n.Freq, n.Dur, gain)...)
	}
	return out
}

// Pitches in Hz.
const (
	noteA3 = 220.00
	noteC4 = 261.63
	noteE4 = 329.63
	noteG4 = 392.00
	noteA4 = 440.00
	noteB4 = 493.88
	noteC5 = 523.25
	noteD5 = 587.33
	noteE5 = 659.25
	noteF5 = 698.46
	noteG5 = 783.99
	noteA5 = 880.00
	noteC6 = 1046.50
)

const beat = 150 * time.Millisecond

func note(freq float64, beats float64) Note {
	return Note{Freq: freq, Dur: time.Duration(beats * float64(beat))}
}

type effect struct {
	wave  Wave
	gain  float64
	notes []Note
}

var effects = map[string]effect{
	"move":      {Square, 0.15, []Note{{noteC5, 25 * time.Millisecond}}},
	"rotate":    {Square, 0.15, []Note{{noteE5, 25 * time.Millisecond}, {noteG5, 25 * time.Millisecond}}},
	"softdrop":  {Triangle, 0.2, []Note{{noteA3, 20 * time.Millisecond}}},
	"harddrop":  {Noise, 0.3, []Note{{1, 80 * time.Millisecond}}},
	"lock":      {Triangle, 0.4, []Note{{noteC4, 60 * time.Millisecond}}},
	"lineclear": {Square, 0.2, []Note{{noteC5, 60 * time.Millisecond}, {noteE5, 60 * time.Millisecond}, {noteG5, 90 * time.Millisecond}}},
	"tetris":    {Square, 0.25, []Note{{noteC5, 70 * time.Millisecond}, {noteE5, 70 * time.Millisecond}, {noteG5, 70 * time.Millisecond}, {noteC6, 200 * time.Millisecond}}},
	"pause":     {Sine, 0.3, []Note{{noteA5, 60 * time.Millisecond}, {noteA4, 60 * time.Millisecond}}},
	"menu":      {Sine, 0.3, []Note{{noteG5, 50 * time.Millisecond}}},
	"gameover":  {Triangle, 0.4, []Note{{noteG4, 200 * time.Millisecond}, {noteE4, 200 * time.Millisecond}, {noteC4, 400 * time.Millisecond}}},
}

// Effect returns the synthesized sound effect called name, or nil if there is none.
func Effect(name string) [][2]float64 {
	e, ok := effects[name]
	if !ok {
		return nil
	}
	return Sequence(e.wave, e.gain, e.notes...)
}

// tracks are the looping music themes. The first one is Korobeiniki.
var tracks = [][]Note{
	{
		note(noteE5, 2), note(noteB4, 1), note(noteC5, 1), note(noteD5, 2), note(noteC5, 1), note(noteB4, 1),
		note(noteA4, 2), note(noteA4, 1), note(noteC5, 1), note(noteE5, 2), note(noteD5, 1), note(noteC5, 1),
		note(noteB4, 3), note(noteC5, 1), note(noteD5, 2), note(noteE5, 2),
		note(noteC5, 2), note(noteA4, 2), note(noteA4, 2), note(0, 2),
		note(noteD5, 3), note(noteF5, 1), note(noteA5, 2), note(noteG5, 1), note(noteF5, 1),
		note(noteE5, 3), note(noteC5, 1), note(noteE5, 2), note(noteD5, 1), note(noteC5, 1),
		note(noteB4, 2), note(noteB4, 1), note(noteC5, 1), note(noteD5, 2), note(noteE5, 2),
		note(noteC5, 2), note(noteA4, 2), note(noteA4, 2), note(0, 2),
	},
	{
		note(noteC5, 1), note(noteE5, 1), note(noteG5, 1), note(noteE5, 1),
		note(noteA4, 1), note(noteC5, 1), note(noteE5, 1), note(noteC5, 1),
		note(noteG4, 1), note(noteB4, 1), note(noteD5, 1), note(noteB4, 1),
		note(noteC5, 2), note(0, 2),
	},
}

// Tracks is the number of synthesized music tracks.
func Tracks() int { return len(tracks) }

// Track returns music track i, or nil if there is none.
func Track(i int) [][2]float64 {
	if i < 0 || i >= len(tracks) {
		return nil
	}
	return Sequence(Square, 0.12, tracks[i]...)
}
