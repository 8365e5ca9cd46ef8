package tetris

import (
	"sync"
	"time"

	"blockfall/input"
)

// MockTicker is a mock implementation of the ticker interface.
type MockTicker struct {
	ch          chan time.Time
	stop, reset bool
	mu          sync.Mutex
}

func NewMockTicker() *MockTicker          { return &MockTicker{ch: make(chan time.Time)} }
func (m *MockTicker) C() <-chan time.Time { return m.ch }
func (m *MockTicker) Tick()               { m.ch <- time.Now() }
func (m *MockTicker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stop = true
}
func (m *MockTicker) Reset(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset = true
}
func (m *MockTicker) IsReset() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reset
}
func (m *MockTicker) IsStop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stop
}

// MockClock is a manual clock for the game loop.
type MockClock struct {
	now time.Time
	mu  sync.Mutex
}

func NewMockClock() *MockClock { return &MockClock{now: time.Unix(0, 0)} }

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockInput is an input source whose buttons are set by hand.
type MockInput struct {
	raw input.Raw
	mu  sync.Mutex
}

func (m *MockInput) Buttons() input.Raw {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw
}

func (m *MockInput) Set(raw input.Raw) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = raw
}

// RecordingSink keeps every effect it receives.
type RecordingSink struct {
	effects []Effect
	mu      sync.Mutex
}

func (r *RecordingSink) Apply(fx []Effect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects = append(r.effects, fx...)
}

func (r *RecordingSink) Effects() []Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Effect(nil), r.effects...)
}

// NewTestSession creates a session in the Control phase with a tetromino of
// shape at its spawn position, the same shape as next piece, and an empty
// playfield.
func NewTestSession(shape Shape) *Session {
	s, err := NewSession(DefaultConfig(), nil)
	if err != nil {
		panic(err)
	}
	s.ID = "test"
	s.phase = Control
	s.active = AtSpawn(NewPiece(shape))
	s.next = AtSpawn(NewPiece(shape))
	s.gravity.start(s.now, gravity(s.stats.Level))
	return s
}

// NewTestSnapshot returns the snapshot of NewTestSession(shape).
func NewTestSnapshot(shape Shape) *Snapshot {
	return NewTestSession(shape).Snapshot()
}
