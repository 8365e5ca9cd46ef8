package tetris

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"blockfall/input"
)

type Ticker interface {
	C() <-chan time.Time
	Reset(time.Duration)
	Stop()
}

type wrappedTicker struct {
	ticker *time.Ticker
}

func newWrappedTicker(d time.Duration) *wrappedTicker {
	return &wrappedTicker{ticker: time.NewTicker(d)}
}

func (t *wrappedTicker) C() <-chan time.Time   { return t.ticker.C }
func (t *wrappedTicker) Stop()                 { t.ticker.Stop() }
func (t *wrappedTicker) Reset(d time.Duration) { t.ticker.Reset(d) }

// InputSource reports which buttons are physically down right now.
type InputSource interface {
	Buttons() input.Raw
}

// EffectSink carries out the side effects produced by a tick.
type EffectSink interface {
	Apply([]Effect)
}

// Accumulator converts real elapsed time into a whole number of fixed steps.
// The remainder carries over to the next call.
type Accumulator struct {
	quantum  time.Duration
	acc      time.Duration
	maxSteps int
}

// NewAccumulator returns an accumulator of quantum-sized steps. When more
// than maxSteps are due at once the backlog is dropped; 0 means no limit.
func NewAccumulator(quantum time.Duration, maxSteps int) *Accumulator {
	return &Accumulator{quantum: quantum, maxSteps: maxSteps}
}

// Advance adds elapsed time and returns how many steps are now due.
func (a *Accumulator) Advance(elapsed time.Duration) int {
	if elapsed > 0 {
		a.acc += elapsed
	}
	n := int(a.acc / a.quantum)
	a.acc -= time.Duration(n) * a.quantum
	if a.maxSteps > 0 && n > a.maxSteps {
		n = a.maxSteps
	}
	return n
}

type Options struct {
	Config    Config
	Input     InputSource
	Sink      EffectSink
	Ticker    Ticker           // Defaults to a real ticker at FrameRate.
	FrameRate int              // Ticker frequency, defaults to 60.
	Clock     func() time.Time // Defaults to time.Now.
	Logger    *slog.Logger
}

// Game runs a Session on its own goroutine with a fixed timestep and
// publishes a Snapshot after every frame that advanced the simulation.
type Game struct {
	UpdateCh chan *Snapshot
	DoneCh   chan struct{}

	session  *Session
	detector *input.Detector
	input    InputSource
	sink     EffectSink
	ticker   Ticker
	frame    time.Duration
	acc      *Accumulator
	clock    func() time.Time
	logger   *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once

	mu   sync.RWMutex
	last *Snapshot
}

// New returns a stopped game loop. Call Start to run it.
func New(o Options) (*Game, error) {
	if o.Input == nil {
		return nil, fmt.Errorf("input source is required")
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	s, err := NewSession(o.Config, o.Logger)
	if err != nil {
		return nil, err
	}
	if o.FrameRate <= 0 {
		o.FrameRate = 60
	}
	frame := time.Second / time.Duration(o.FrameRate)
	if o.Ticker == nil {
		// the ticker only starts firing once listen() resets it.
		o.Ticker = newWrappedTicker(time.Hour)
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return &Game{
		UpdateCh: make(chan *Snapshot, 1),
		DoneCh:   make(chan struct{}),
		session:  s,
		detector: input.NewDetector(),
		input:    o.Input,
		sink:     o.Sink,
		ticker:   o.Ticker,
		frame:    frame,
		acc:      NewAccumulator(s.quantum, 10),
		clock:    o.Clock,
		logger:   o.Logger,
		stopCh:   make(chan struct{}),
		last:     s.Snapshot(),
	}, nil
}

func (g *Game) Start() {
	go g.listen()
}

// Stop ends the loop. It's safe to call more than once.
func (g *Game) Stop() {
	g.stopOnce.Do(func() {
		g.ticker.Stop()
		close(g.stopCh)
	})
}

func (g *Game) GetUpdate() <-chan *Snapshot { return g.UpdateCh }

// Done is closed once the session has quit and the loop has ended.
func (g *Game) Done() <-chan struct{} { return g.DoneCh }

// Read() returns the last published state. It's safe to read concurrently.
func (g *Game) Read() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.last
}

func (g *Game) listen() {
	prev := g.clock()
	g.ticker.Reset(g.frame)
	g.publish()
	for {
		select {
		case <-g.ticker.C():
			now := g.clock()
			steps := g.acc.Advance(now.Sub(prev))
			prev = now
			for range steps {
				fx := g.session.Step(g.detector.Update(g.input.Buttons()))
				if len(fx) > 0 && g.sink != nil {
					g.sink.Apply(fx)
				}
				if g.session.Done() {
					g.logger.Debug("quit delay elapsed, stopping game loop")
					g.publish()
					g.ticker.Stop()
					close(g.DoneCh)
					return
				}
			}
			if steps > 0 {
				g.publish()
			}
		case <-g.stopCh:
			return
		}
	}
}

// publish stores a new snapshot and offers it on UpdateCh. A reader that
// falls behind only ever sees the latest one.
func (g *Game) publish() {
	snap := g.session.Snapshot()
	g.mu.Lock()
	g.last = snap
	g.mu.Unlock()

	select {
	case g.UpdateCh <- snap:
		return
	default:
	}
	select {
	case <-g.UpdateCh:
	default:
	}
	select {
	case g.UpdateCh <- snap:
	default:
	}
}
