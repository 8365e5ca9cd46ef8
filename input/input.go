// Package input turns raw held/unheld button samples into per-tick transitions.
package input

// Button is a logical game button, already decoupled from any physical key.
type Button int

const (
	Left      Button = iota // Moves the piece one column to the left.
	Right                   // Moves the piece one column to the right.
	SoftDrop                // Moves the piece one row down.
	HardDrop                // Drops the piece to the bottom of the stack.
	RotateCW                // Rotates the piece clockwise.
	RotateCCW               // Rotates the piece counter-clockwise.
	Pause                   // Pauses and resumes the game.
	Confirm                 // Starts, restarts and confirms menus.
	Quit                    // Leaves the current screen.

	ButtonCount int = iota
)

var buttonNames = [ButtonCount]string{
	Left:      "left",
	Right:     "right",
	SoftDrop:  "softdrop",
	HardDrop:  "harddrop",
	RotateCW:  "rotatecw",
	RotateCCW: "rotateccw",
	Pause:     "pause",
	Confirm:   "confirm",
	Quit:      "quit",
}

func (b Button) String() string {
	if b < 0 || int(b) >= ButtonCount {
		return "unknown"
	}
	return buttonNames[b]
}

// State is the transition a button went through during the last tick.
type State uint8

const (
	None     State = iota // Not held, and wasn't held the previous tick.
	Pressed               // Went down this tick. Lasts exactly one tick.
	Held                  // Still down after the tick it was pressed.
	Released              // Went up this tick. Lasts exactly one tick.
)

func (s State) String() string {
	switch s {
	case None:
		return "none"
	case Pressed:
		return "pressed"
	case Held:
		return "held"
	case Released:
		return "released"
	default:
		return "unknown"
	}
}

// Down reports whether the button is physically down (pressed or held).
func (s State) Down() bool { return s == Pressed || s == Held }

// next applies one tick of the automaton:
//
//	None     --down--> Pressed --down--> Held --up--> Released --up--> None
//	Pressed  --up----> Released
//	Released --down--> Pressed
func (s State) next(down bool) State {
	switch s {
	case Pressed, Held:
		if down {
			return Held
		}
		return Released
	default:
		if down {
			return Pressed
		}
		return None
	}
}

// Raw is one sample of which buttons are physically down.
type Raw [ButtonCount]bool

// Snapshot holds every button's state for a single tick.
type Snapshot [ButtonCount]State

// Pressed reports whether b went down this tick.
func (s Snapshot) Pressed(b Button) bool { return s[b] == Pressed }

// Held reports whether b is down for at least the second tick in a row.
func (s Snapshot) Held(b Button) bool { return s[b] == Held }

// Down reports whether b is pressed or held.
func (s Snapshot) Down(b Button) bool { return s[b].Down() }

// Released reports whether b went up this tick.
func (s Snapshot) Released(b Button) bool { return s[b] == Released }

// Detector keeps one independent automaton per button.
// It's not safe for concurrent use; the simulation goroutine owns it.
type Detector struct {
	states Snapshot
}

func NewDetector() *Detector {
	return &Detector{}
}

// Update advances every button by one tick and returns the resulting snapshot.
func (d *Detector) Update(raw Raw) Snapshot {
	for i := range d.states {
		d.states[i] = d.states[i].next(raw[i])
	}
	return d.states
}

// With returns a raw sample with the given buttons down. Handy for tests and scripted input.
func With(buttons ...Button) Raw {
	var r Raw
	for _, b := range buttons {
		r[b] = true
	}
	return r
}
