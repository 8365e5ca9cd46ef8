package client

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"blockfall/audio"
	"blockfall/scores"
	"blockfall/terminal"
	"blockfall/tetris"

	"github.com/eiannone/keyboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTetris struct {
	updateCh chan *tetris.Snapshot
	doneCh   chan struct{}
	start    atomic.Bool
	stop     atomic.Bool
	last     atomic.Pointer[tetris.Snapshot]
}

func (m *mockTetris) Start()                             { m.start.Store(true) }
func (m *mockTetris) Stop()                              { m.stop.Store(true) }
func (m *mockTetris) GetUpdate() <-chan *tetris.Snapshot { return m.updateCh }
func (m *mockTetris) Done() <-chan struct{}              { return m.doneCh }
func (m *mockTetris) Read() *tetris.Snapshot             { return m.last.Load() }

// publish offers s as an update and as the last snapshot.
func (m *mockTetris) publish(s *tetris.Snapshot) {
	m.last.Store(s)
	m.updateCh <- s
}

type mockRender struct {
	mu    sync.Mutex
	draws []*tetris.Snapshot
	best  int
	sfx   float64
	music float64
	muted bool
}

func (m *mockRender) draw(s *tetris.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draws = append(m.draws, s)
}

func (m *mockRender) status(best int, sfx, music float64, muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.best, m.sfx, m.music, m.muted = best, sfx, music, muted
}

func (m *mockRender) drawCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.draws)
}

func (m *mockRender) bestScore() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.best
}

func (m *mockRender) isMuted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

// lockedBuffer collects log lines written from the client goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type mockKeys struct {
	commands  chan terminal.Command
	interrupt chan struct{}
}

func (m *mockKeys) Commands() <-chan terminal.Command { return m.commands }
func (m *mockKeys) Interrupt() <-chan struct{}        { return m.interrupt }

type fixture struct {
	client *Client
	tetris *mockTetris
	render *mockRender
	keys   *mockKeys
	mixer  *audio.Mixer
	scores *scores.SQLiteRepository
	done   chan struct{}
	cancel context.CancelFunc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := scores.NewSQLiteRepository(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close(context.Background()) })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mixer := audio.NewMixer()
	f := &fixture{
		tetris: &mockTetris{updateCh: make(chan *tetris.Snapshot, 1), doneCh: make(chan struct{})},
		render: &mockRender{},
		keys:   &mockKeys{commands: make(chan terminal.Command), interrupt: make(chan struct{})},
		mixer:  mixer,
		scores: repo,
		done:   make(chan struct{}),
	}
	f.client = &Client{
		tetris:  f.tetris,
		render:  f.render,
		keys:    f.keys,
		mixer:   mixer,
		sounds:  newSounds(mixer, &audio.Library{Sounds: map[string]audio.SampleID{}}, logger),
		scores:  repo,
		options: &Options{Name: "local"},
		logger:  logger,
	}
	return f
}

func (f *fixture) start() {
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() {
		f.client.Start(ctx)
		close(f.done)
	}()
}

func (f *fixture) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(time.Second):
		require.FailNow(t, "timeout waiting for the client to return")
	}
	assert.True(t, f.tetris.stop.Load(), "wanted tetris.Stop() to be called")
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, time.Second, time.Millisecond, msg)
}

func TestClient(t *testing.T) {
	f := newFixture(t)
	f.start()
	defer f.cancel()

	eventually(t, f.tetris.start.Load, "wanted tetris.Start() to be called")

	f.tetris.updateCh <- &tetris.Snapshot{Phase: tetris.Title}
	eventually(t, func() bool { return f.render.drawCount() == 1 }, "wanted the update to be drawn")

	// a game in progress isn't recorded.
	f.tetris.updateCh <- &tetris.Snapshot{ID: "game-1", Phase: tetris.Control, Stats: tetris.Stats{Score: 100}}
	eventually(t, func() bool { return f.render.drawCount() == 2 }, "wanted the update to be drawn")
	top, err := f.scores.Top(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, top, "wanted no score while playing")

	over := &tetris.Snapshot{ID: "game-1", Phase: tetris.GameOverTransitionFill, Stats: tetris.Stats{Score: 500, Lines: 5, Level: 1}}
	f.tetris.updateCh <- over
	f.tetris.updateCh <- over
	f.tetris.updateCh <- &tetris.Snapshot{ID: "game-1", Phase: tetris.GameOver, Stats: over.Stats}
	eventually(t, func() bool { return f.render.drawCount() == 5 }, "wanted every update to be drawn")

	s, err := f.scores.ByGame(context.Background(), "game-1")
	require.NoError(t, err, "wanted the score to be saved")
	assert.Equal(t, 500, s.Score)
	assert.Equal(t, "local", s.Name)
	assert.Equal(t, 5, s.Lines)
	assert.Equal(t, 500, f.render.bestScore())

	close(f.tetris.doneCh)
	f.waitDone(t)
}

func TestClientDrawsTheFinalSnapshot(t *testing.T) {
	t.Run("pending update", func(t *testing.T) {
		f := newFixture(t)
		f.tetris.publish(&tetris.Snapshot{Phase: tetris.Quit})
		close(f.tetris.doneCh)
		f.start()
		defer f.cancel()
		f.waitDone(t)
		assert.Equal(t, 1, f.render.drawCount(), "wanted the quit screen to be drawn once")
	})

	t.Run("update already taken", func(t *testing.T) {
		f := newFixture(t)
		f.tetris.last.Store(&tetris.Snapshot{Phase: tetris.Quit})
		close(f.tetris.doneCh)
		f.start()
		defer f.cancel()
		f.waitDone(t)
		require.Equal(t, 1, f.render.drawCount(), "wanted the last snapshot to be read and drawn")
		assert.Equal(t, tetris.Quit, f.render.draws[0].Phase)
	})
}

func TestClientCommands(t *testing.T) {
	f := newFixture(t)
	f.start()
	defer f.cancel()

	f.tetris.updateCh <- &tetris.Snapshot{Phase: tetris.Control}
	eventually(t, func() bool { return f.render.drawCount() == 1 }, "wanted the update to be drawn")

	f.keys.commands <- terminal.SFXDown
	f.keys.commands <- terminal.MusicDown
	f.keys.commands <- terminal.MusicDown
	f.keys.commands <- terminal.SFXUp
	eventually(t, func() bool { return f.render.drawCount() == 5 }, "wanted a redraw after every command")
	assert.InDelta(t, 1, f.mixer.Volume(audio.SFX), 0.01)
	assert.InDelta(t, 0.8, f.mixer.Volume(audio.Music), 0.01)

	f.keys.commands <- terminal.ToggleMusic
	eventually(t, f.render.isMuted, "wanted music to be muted")
	assert.True(t, f.mixer.Paused(audio.Music), "wanted the music channel to be paused")
	f.keys.commands <- terminal.ToggleMusic
	eventually(t, func() bool { return !f.render.isMuted() }, "wanted music to be unmuted")
	assert.False(t, f.mixer.Paused(audio.Music), "wanted the music channel to play")

	f.cancel()
	f.waitDone(t)
}

func TestClientInterrupt(t *testing.T) {
	f := newFixture(t)
	logs := &lockedBuffer{}
	f.client.logger = slog.New(slog.NewJSONHandler(logs, nil))
	f.start()
	defer f.cancel()
	close(f.keys.interrupt)
	f.waitDone(t)

	out := logs.String()
	assert.Contains(t, out, `"msg":"keyboard interrupted"`)
	assert.Contains(t, out, `"msg":"client stopped"`)
	assert.Contains(t, out, `"sounds_played":0`)
	assert.Contains(t, out, `"active_voices":0`)
}

func TestClientWithoutScores(t *testing.T) {
	f := newFixture(t)
	f.client.scores = nil
	f.start()
	defer f.cancel()

	f.tetris.updateCh <- &tetris.Snapshot{ID: "game-1", Phase: tetris.GameOver}
	eventually(t, func() bool { return f.render.drawCount() == 1 }, "wanted the update to be drawn")
	close(f.tetris.doneCh)
	f.waitDone(t)
}

func TestSounds(t *testing.T) {
	mixer := audio.NewMixer()
	move, err := mixer.Register(audio.Effect("move"))
	require.NoError(t, err)
	music, err := mixer.Register(audio.Track(0))
	require.NoError(t, err)
	lib := &audio.Library{Sounds: map[string]audio.SampleID{"move": move}, Music: []audio.SampleID{music}}
	s := newSounds(mixer, lib, slog.Default())

	s.Apply([]tetris.Effect{{Kind: tetris.EffectSound, Sound: tetris.SoundMove}})
	assert.Equal(t, 1, mixer.Active())
	// no sample for lock
	s.Apply([]tetris.Effect{{Kind: tetris.EffectSound, Sound: tetris.SoundLock}})
	assert.Equal(t, 1, mixer.Active())

	s.Apply([]tetris.Effect{{Kind: tetris.EffectMusic, Track: 3}})
	assert.Equal(t, 2, mixer.Active(), "wanted the music to be queued")
	// a new track replaces the current one.
	s.Apply([]tetris.Effect{{Kind: tetris.EffectMusic, Track: 1}})
	assert.Equal(t, 2, mixer.Active(), "wanted a single music voice")

	s.Apply([]tetris.Effect{{Kind: tetris.EffectMusicPause}})
	assert.True(t, mixer.Paused(audio.Music), "wanted music paused")
	s.Apply([]tetris.Effect{{Kind: tetris.EffectMusicResume}})
	assert.False(t, mixer.Paused(audio.Music), "wanted music resumed")

	// muted music stays paused on resume.
	s.toggleMusic()
	s.Apply([]tetris.Effect{{Kind: tetris.EffectMusicPause}, {Kind: tetris.EffectMusicResume}})
	assert.True(t, mixer.Paused(audio.Music), "wanted muted music to stay paused")
	s.toggleMusic()

	s.Apply([]tetris.Effect{{Kind: tetris.EffectMusicStop}})
	assert.Equal(t, 1, mixer.Active(), "wanted the music to stop")

	// a restart after game over brings the music back.
	s.Apply([]tetris.Effect{{Kind: tetris.EffectSound, Sound: tetris.SoundMenu}, {Kind: tetris.EffectMusic, Track: 0}})
	assert.Equal(t, 2, mixer.Active(), "wanted the music playing again")
	assert.False(t, mixer.Paused(audio.Music))
}

func TestSoundNames(t *testing.T) {
	names := SoundNames()
	require.Len(t, names, tetris.SoundCount)
	assert.Equal(t, "move", names[tetris.SoundMove])
	for _, n := range names {
		assert.NotEmpty(t, audio.Effect(n), "wanted a synthesized effect for %q", n)
	}
}

func TestNew(t *testing.T) {
	_, err := New(&Options{})
	assert.Error(t, err, "wanted an error without a keyboard")

	events := make(chan keyboard.KeyEvent)
	kb, err := terminal.Open(terminal.Options{Events: events})
	require.NoError(t, err)
	w := &strings.Builder{}
	c, err := New(&Options{Writer: w, Keyboard: kb, Config: tetris.DefaultConfig(), Name: "local"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	c.Start(ctx)
	assert.Contains(t, w.String(), "BLOCKFALL", "wanted the splash screen to be drawn")

	_, err = New(&Options{Keyboard: kb, Config: tetris.Config{}})
	assert.Error(t, err, "wanted an error with an invalid config")
}
