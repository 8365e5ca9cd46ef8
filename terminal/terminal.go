// Package terminal turns keyboard events into held buttons.
//
// A terminal only reports key presses, and auto-repeat while a key is kept
// down, never key releases. A button is therefore considered down for a
// short hold window after each event for its key.
package terminal

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"blockfall/input"

	"github.com/eiannone/keyboard"
)

const (
	HideCursor = "\033[2J\033[?25l" // also clear screen
	ShowCursor = "\033[23;0H\n\r\033[?25h"
	Clear      = "\033[2J\033[H"

	// DefaultHold covers the usual auto-repeat interval (25-30 per second)
	// while staying shorter than the soft drop repeat.
	DefaultHold = 50 * time.Millisecond
)

// Command is a key that doesn't drive the game itself.
type Command int

const (
	SFXUp Command = iota
	SFXDown
	MusicUp
	MusicDown
	ToggleMusic
)

func (c Command) String() string {
	switch c {
	case SFXUp:
		return "sfx_up"
	case SFXDown:
		return "sfx_down"
	case MusicUp:
		return "music_up"
	case MusicDown:
		return "music_down"
	case ToggleMusic:
		return "toggle_music"
	}
	return "unknown"
}

type Options struct {
	Events <-chan keyboard.KeyEvent // Defaults to the system keyboard.
	Hold   time.Duration            // Defaults to DefaultHold.
	Clock  func() time.Time         // Defaults to time.Now.
	Logger *slog.Logger
}

// Keyboard reads key events and reports which buttons are down.
type Keyboard struct {
	events <-chan keyboard.KeyEvent
	owned  bool
	hold   time.Duration
	clock  func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	lastSeen [input.ButtonCount]time.Time
	pending  [input.ButtonCount]bool // Seen since the last Buttons call.

	commands  chan Command
	interrupt chan struct{}
	once      sync.Once
}

// Open starts reading the keyboard. With no Events in o the terminal is put
// in raw mode until Close.
func Open(o Options) (*Keyboard, error) {
	k := &Keyboard{
		events:    o.Events,
		hold:      o.Hold,
		clock:     o.Clock,
		logger:    o.Logger,
		commands:  make(chan Command, 8),
		interrupt: make(chan struct{}),
	}
	if k.events == nil {
		kb, err := keyboard.GetKeys(20)
		if err != nil {
			return nil, fmt.Errorf("failed to open keyboard: %w", err)
		}
		k.events = kb
		k.owned = true
	}
	if k.hold <= 0 {
		k.hold = DefaultHold
	}
	if k.clock == nil {
		k.clock = time.Now
	}
	if k.logger == nil {
		k.logger = slog.Default()
	}
	go k.listen()
	return k, nil
}

// Close restores the terminal if Open put it in raw mode.
func (k *Keyboard) Close() error {
	if !k.owned {
		return nil
	}
	return keyboard.Close()
}

// Commands delivers non-game keys. Commands are dropped if nobody reads them.
func (k *Keyboard) Commands() <-chan Command { return k.commands }

// Interrupt is closed on Ctrl-C or when the keyboard can't be read anymore.
func (k *Keyboard) Interrupt() <-chan struct{} { return k.interrupt }

// Buttons implements tetris.InputSource.
func (k *Keyboard) Buttons() input.Raw {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.clock()
	var raw input.Raw
	for b := range raw {
		raw[b] = k.pending[b] || (!k.lastSeen[b].IsZero() && now.Sub(k.lastSeen[b]) < k.hold)
		k.pending[b] = false
	}
	return raw
}

func (k *Keyboard) listen() {
	for {
		event, ok := <-k.events
		if !ok {
			k.logger.Error("keyboard events channel closed unexpectedly")
			k.stop()
			return
		}
		if event.Err != nil {
			k.logger.Error("keysEvents error", slog.String("error", event.Err.Error()))
			k.stop()
			return
		}
		if !k.handle(event) {
			k.stop()
			return
		}
	}
}

func (k *Keyboard) stop() {
	k.once.Do(func() { close(k.interrupt) })
}

// handle records a single event. It returns false on Ctrl-C.
func (k *Keyboard) handle(event keyboard.KeyEvent) bool {
	if event.Key == keyboard.KeyCtrlC {
		return false
	}
	if b, ok := buttonFor(event); ok {
		k.mu.Lock()
		k.lastSeen[b] = k.clock()
		k.pending[b] = true
		k.mu.Unlock()
		return true
	}
	if c, ok := commandFor(event); ok {
		select {
		case k.commands <- c:
		default:
			k.logger.Debug("command dropped", slog.String("command", c.String()))
		}
	}
	return true
}

func buttonFor(event keyboard.KeyEvent) (input.Button, bool) {
	switch {
	case event.Key == keyboard.KeyArrowDown || event.Rune == 's':
		return input.SoftDrop, true
	case event.Key == keyboard.KeyArrowLeft || event.Rune == 'a':
		return input.Left, true
	case event.Key == keyboard.KeyArrowRight || event.Rune == 'd':
		return input.Right, true
	case event.Key == keyboard.KeyArrowUp || event.Rune == 'e':
		return input.RotateCW, true
	case event.Rune == 'q':
		return input.RotateCCW, true
	case event.Key == keyboard.KeySpace:
		return input.HardDrop, true
	case event.Rune == 'p':
		return input.Pause, true
	case event.Key == keyboard.KeyEnter:
		return input.Confirm, true
	case event.Key == keyboard.KeyEsc:
		return input.Quit, true
	}
	return 0, false
}

func commandFor(event keyboard.KeyEvent) (Command, bool) {
	switch event.Rune {
	case '+', '=':
		return SFXUp, true
	case '-':
		return SFXDown, true
	case ']':
		return MusicUp, true
	case '[':
		return MusicDown, true
	case 'm':
		return ToggleMusic, true
	}
	return 0, false
}
