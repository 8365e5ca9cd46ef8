// Package tetris contains the logic of the game
// based on https://tetris.wiki/Tetris_Guideline
package tetris

import (
	"fmt"
	"log/slog"
	"time"

	"blockfall/input"

	"github.com/google/uuid"
)

// timer is a deadline on the simulated clock.
type timer struct {
	deadline time.Duration
	armed    bool
}

func (t *timer) start(now, d time.Duration) {
	t.deadline = now + d
	t.armed = true
}

func (t *timer) stop() { t.armed = false }

func (t *timer) expired(now time.Duration) bool {
	return t.armed && now >= t.deadline
}

// delay pushes the deadline back, used to freeze a timer while paused.
func (t *timer) delay(d time.Duration) {
	if t.armed {
		t.deadline += d
	}
}

type Stats struct {
	Score int
	Lines int
	Level int
}

// Session is a whole game: playfield, pieces, stats and the phase sequencer.
// It's driven one tick at a time by Step and is not safe for concurrent use.
type Session struct {
	ID string

	cfg     Config
	quantum time.Duration
	logger  *slog.Logger
	spawner *Spawner

	field  Playfield
	active *Tetromino
	next   *Tetromino
	stats  Stats

	phase  Phase
	staged Phase

	now   time.Duration // Simulated clock at the start of the current tick.
	ticks uint64

	gravity  timer
	move     timer
	softDrop timer
	wait     timer // Splash, line deletion, game over rows and quit.

	fullRows   []int
	flashStart time.Duration
	fillRow    int
	topOut     Shape
	track      int
	done       bool

	effects []Effect
}

// NewSession returns a session showing the splash screen.
func NewSession(cfg Config, logger *slog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	spawner, err := NewSpawner(cfg.Seed, cfg.Randomizer)
	if err != nil {
		return nil, fmt.Errorf("failed to create spawner: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		cfg:     cfg,
		quantum: cfg.Quantum(),
		logger:  logger,
		spawner: spawner,
		phase:   Splash,
		stats:   Stats{Level: cfg.StartLevel},
	}
	s.wait.start(0, cfg.SplashDuration)
	return s, nil
}

type phaseFunc func(*Session, input.Snapshot) Phase

// phases holds the body of every phase. A missing entry is a transition
// table bug.
var phases = [phaseCount]phaseFunc{
	Splash:                  (*Session).splash,
	InputMapping:            (*Session).inputMapping,
	Title:                   (*Session).title,
	MusicConfig:             (*Session).musicConfig,
	NewGame:                 (*Session).newGame,
	Control:                 (*Session).control,
	Pause:                   (*Session).pause,
	Place:                   (*Session).place,
	RemoveLines:             (*Session).removeLines,
	Consolidate:             (*Session).consolidate,
	Respawn:                 (*Session).respawn,
	GameOverTransitionFill:  (*Session).gameOverFill,
	GameOverTransitionClear: (*Session).gameOverClear,
	GameOver:                (*Session).gameOver,
	Quit:                    (*Session).quit,
}

// Step runs the current phase once and advances the simulated clock by one
// tick. A phase change is staged and only applied after the body returns,
// so no two phase bodies ever run in the same tick.
func (s *Session) Step(in input.Snapshot) []Effect {
	s.effects = nil

	if !s.phase.valid() || phases[s.phase] == nil {
		panic(fmt.Sprintf("tetris: no body for phase %d (%s)", int(s.phase), s.phase))
	}
	if next := phases[s.phase](s, in); next != s.phase {
		if !next.valid() {
			panic(fmt.Sprintf("tetris: phase %s moved to invalid phase %d", s.phase, int(next)))
		}
		s.staged = next
	}

	if s.staged != phaseInvalid {
		s.logger.Debug("phase transition",
			slog.String("game_id", s.ID),
			slog.String("from", s.phase.String()),
			slog.String("to", s.staged.String()),
			slog.Uint64("tick", s.ticks))
		s.phase = s.staged
		s.staged = phaseInvalid
	}

	s.now += s.quantum
	s.ticks++
	return s.effects
}

// Phase returns the current phase.
func (s *Session) Phase() Phase { return s.phase }

// Done reports whether the quit screen has finished.
func (s *Session) Done() bool { return s.done }

// Stats returns the score, lines and level of the current game.
func (s *Session) Stats() Stats { return s.stats }

// Now returns the simulated time elapsed since the session started.
func (s *Session) Now() time.Duration { return s.now }

func (s *Session) emit(e Effect) {
	s.effects = append(s.effects, e)
}

func (s *Session) play(snd Sound) {
	s.emit(Effect{Kind: EffectSound, Sound: snd})
}

func (s *Session) splash(in input.Snapshot) Phase {
	if in.Pressed(input.Confirm) || s.wait.expired(s.now) {
		s.wait.stop()
		return InputMapping
	}
	return Splash
}

func (s *Session) inputMapping(in input.Snapshot) Phase {
	switch {
	case in.Pressed(input.Confirm):
		return s.toTitle()
	case in.Pressed(input.Quit):
		return s.toQuit()
	}
	return InputMapping
}

func (s *Session) title(in input.Snapshot) Phase {
	switch {
	case in.Pressed(input.Confirm):
		s.play(SoundMenu)
		return MusicConfig
	case in.Pressed(input.Quit):
		return s.toQuit()
	}
	return Title
}

func (s *Session) musicConfig(in input.Snapshot) Phase {
	n := s.cfg.MusicTracks
	switch {
	case in.Pressed(input.Left):
		s.track = (s.track - 1 + n) % n
		s.emit(Effect{Kind: EffectMusic, Track: s.track})
	case in.Pressed(input.Right):
		s.track = (s.track + 1) % n
		s.emit(Effect{Kind: EffectMusic, Track: s.track})
	case in.Pressed(input.Confirm):
		s.play(SoundMenu)
		return NewGame
	case in.Pressed(input.Quit):
		return s.toTitle()
	}
	return MusicConfig
}

func (s *Session) toTitle() Phase {
	s.active, s.next = nil, nil
	s.emit(Effect{Kind: EffectMusic, Track: s.track})
	return Title
}

func (s *Session) toQuit() Phase {
	s.emit(Effect{Kind: EffectMusicStop})
	s.wait.start(s.now, s.cfg.QuitDelay)
	return Quit
}

func (s *Session) newGame(input.Snapshot) Phase {
	s.ID = uuid.NewString()
	s.field.Reset()
	s.stats = Stats{Level: s.cfg.StartLevel}
	s.fullRows = nil
	s.spawner.Reset()
	s.active = s.spawner.Spawn()
	s.next = s.spawner.Spawn()
	s.move.stop()
	s.softDrop.stop()
	s.gravity.start(s.now, gravity(s.stats.Level))
	s.logger.Info("new game", slog.String("game_id", s.ID), slog.Int("level", s.stats.Level))
	return Control
}

func (s *Session) control(in input.Snapshot) Phase {
	if in.Pressed(input.Pause) {
		s.play(SoundPause)
		s.emit(Effect{Kind: EffectMusicPause})
		return Pause
	}
	if in.Pressed(input.HardDrop) {
		d := DropDistance(&s.field, s.active)
		s.active.Y -= d
		s.stats.Score += 2 * d
		s.play(SoundHardDrop)
		return Place
	}

	switch {
	case in.Pressed(input.RotateCW):
		s.rotate(Clockwise)
	case in.Pressed(input.RotateCCW):
		s.rotate(CounterClockwise)
	}

	s.shift(in)

	if s.softDropStep(in) {
		return Place
	}

	if s.gravity.expired(s.now) {
		if MoveCollides(&s.field, s.active, 0, -1) {
			return Place
		}
		s.active.Y--
		s.gravity.start(s.now, gravity(s.stats.Level))
	}
	return Control
}

func (s *Session) rotate(d Direction) {
	if RotationCollides(&s.field, s.active, d) {
		return
	}
	s.active.Rotate(d)
	s.play(SoundRotate)
}

// shift moves the piece sideways on press, then every MoveRepeat while held.
func (s *Session) shift(in input.Snapshot) {
	dx := 0
	switch {
	case in.Pressed(input.Left):
		dx = -1
	case in.Pressed(input.Right):
		dx = 1
	case in.Held(input.Left) && s.move.expired(s.now):
		dx = -1
	case in.Held(input.Right) && s.move.expired(s.now):
		dx = 1
	default:
		return
	}
	s.move.start(s.now, s.cfg.MoveRepeat)
	if MoveCollides(&s.field, s.active, dx, 0) {
		return
	}
	s.active.X += dx
	s.play(SoundMove)
}

// softDropStep moves the piece down on press, then every SoftDropRepeat
// while held. It reports whether the piece landed.
func (s *Session) softDropStep(in input.Snapshot) bool {
	switch {
	case in.Pressed(input.SoftDrop):
	case in.Held(input.SoftDrop) && s.softDrop.expired(s.now):
	default:
		return false
	}
	s.softDrop.start(s.now, s.cfg.SoftDropRepeat)
	if MoveCollides(&s.field, s.active, 0, -1) {
		return true
	}
	s.active.Y--
	s.stats.Score++
	s.gravity.start(s.now, gravity(s.stats.Level))
	s.play(SoundSoftDrop)
	return false
}

func (s *Session) pause(in input.Snapshot) Phase {
	// the game clock is frozen while paused.
	s.gravity.delay(s.quantum)
	s.move.delay(s.quantum)
	s.softDrop.delay(s.quantum)

	switch {
	case in.Pressed(input.Pause), in.Pressed(input.Confirm):
		s.emit(Effect{Kind: EffectMusicResume})
		return Control
	case in.Pressed(input.Quit):
		s.logger.Info("game abandoned", slog.String("game_id", s.ID), slog.Int("score", s.stats.Score))
		return s.toTitle()
	}
	return Pause
}

func (s *Session) place(input.Snapshot) Phase {
	if err := s.field.Lock(s.active); err != nil {
		s.logger.Error("lock overlapped the stack",
			slog.String("game_id", s.ID),
			slog.String("shape", string(s.active.Shape)),
			slog.String("error", err.Error()))
	}
	s.active = nil
	s.play(SoundLock)

	rows := s.field.FullRows()
	if len(rows) == 0 {
		return Respawn
	}
	s.fullRows = rows
	s.flashStart = s.now
	s.wait.start(s.now, s.cfg.DeletionDelay)
	if len(rows) >= 4 {
		s.play(SoundTetris)
	} else {
		s.play(SoundLineClear)
	}
	return RemoveLines
}

func (s *Session) removeLines(input.Snapshot) Phase {
	if !s.wait.expired(s.now) {
		return RemoveLines
	}
	s.wait.stop()
	for _, r := range s.fullRows {
		s.field.ClearRow(r)
	}
	n := len(s.fullRows)
	s.stats.Score += scoreFor(n, s.stats.Level)
	s.stats.Lines += n
	s.stats.Level = levelFor(s.stats.Level, s.stats.Lines)
	s.fullRows = nil
	return Consolidate
}

func (s *Session) consolidate(input.Snapshot) Phase {
	s.field.Consolidate()
	return Respawn
}

func (s *Session) respawn(input.Snapshot) Phase {
	s.active = s.next
	s.next = s.spawner.Spawn()
	if MoveCollides(&s.field, s.active, 0, 0) {
		s.topOut = s.active.Shape
		s.active = nil
		s.fillRow = 0
		s.wait.start(s.now, s.cfg.FillRowDelay)
		s.play(SoundGameOver)
		s.emit(Effect{Kind: EffectMusicStop})
		s.logger.Info("game over",
			slog.String("game_id", s.ID),
			slog.Int("score", s.stats.Score),
			slog.Int("lines", s.stats.Lines),
			slog.Int("level", s.stats.Level),
			slog.Int("stack_rows", s.field.OccupiedRows()))
		return GameOverTransitionFill
	}
	s.move.stop()
	s.softDrop.stop()
	s.gravity.start(s.now, gravity(s.stats.Level))
	return Control
}

// gameOverFill occupies one row per FillRowDelay, bottom to top.
func (s *Session) gameOverFill(input.Snapshot) Phase {
	if !s.wait.expired(s.now) {
		return GameOverTransitionFill
	}
	s.field.FillRow(s.fillRow, s.topOut)
	s.fillRow++
	s.wait.start(s.now, s.cfg.FillRowDelay)
	if s.fillRow < Height {
		return GameOverTransitionFill
	}
	s.fillRow = Height - 1
	return GameOverTransitionClear
}

// gameOverClear vacates one row per FillRowDelay, top to bottom.
func (s *Session) gameOverClear(input.Snapshot) Phase {
	if !s.wait.expired(s.now) {
		return GameOverTransitionClear
	}
	s.field.ClearRow(s.fillRow)
	s.fillRow--
	if s.fillRow >= 0 {
		s.wait.start(s.now, s.cfg.FillRowDelay)
		return GameOverTransitionClear
	}
	s.wait.stop()
	s.field.Reset()
	return GameOver
}

func (s *Session) gameOver(in input.Snapshot) Phase {
	switch {
	case in.Pressed(input.Confirm):
		s.play(SoundMenu)
		// the music stopped at top out.
		s.emit(Effect{Kind: EffectMusic, Track: s.track})
		return NewGame
	case in.Pressed(input.Quit):
		return s.toTitle()
	}
	return GameOver
}

func (s *Session) quit(input.Snapshot) Phase {
	if s.wait.expired(s.now) {
		s.done = true
	}
	return Quit
}

// flashing reports whether the rows about to be removed are highlighted.
func (s *Session) flashing() bool {
	if s.phase != RemoveLines || s.cfg.FlashPeriod <= 0 {
		return false
	}
	return ((s.now-s.flashStart)/s.cfg.FlashPeriod)%2 == 0
}

// Snapshot is a read-only copy of a session, safe to hand to another goroutine.
type Snapshot struct {
	ID        string
	Phase     Phase
	Field     Playfield
	Tetromino *Tetromino
	Next      *Tetromino
	GhostY    int
	Stats     Stats
	FullRows  []int
	Flash     bool
	Track     int
	Tracks    int
	Time      time.Duration
}

// Snapshot copies the session state needed to draw it.
func (s *Session) Snapshot() *Snapshot {
	snap := &Snapshot{
		ID:        s.ID,
		Phase:     s.phase,
		Field:     s.field,
		Tetromino: s.active.copy(),
		Next:      s.next.copy(),
		Stats:     s.stats,
		FullRows:  append([]int(nil), s.fullRows...),
		Flash:     s.flashing(),
		Track:     s.track,
		Tracks:    s.cfg.MusicTracks,
		Time:      s.now,
	}
	if s.active != nil {
		snap.GhostY = s.active.Y - DropDistance(&s.field, s.active)
	}
	return snap
}
