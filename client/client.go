package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"blockfall/audio"
	"blockfall/scores"
	"blockfall/terminal"
	"blockfall/tetris"
)

// volumeStep is how much a volume key changes a channel.
const volumeStep = 0.1

type tetrisGame interface {
	Start()
	Stop()
	GetUpdate() <-chan *tetris.Snapshot
	Done() <-chan struct{}
	Read() *tetris.Snapshot
}

type renderer interface {
	draw(*tetris.Snapshot)
	status(best int, sfx, music float64, muted bool)
}

type keys interface {
	Commands() <-chan terminal.Command
	Interrupt() <-chan struct{}
}

type Client struct {
	tetris  tetrisGame
	render  renderer
	keys    keys
	mixer   mixer
	sounds  *sounds
	scores  scores.Repository
	options *Options
	logger  *slog.Logger

	last     *tetris.Snapshot
	best     int
	recorded string // Game ID of the last saved score.
}

type Options struct {
	Writer   io.Writer // Defaults to os.Stdout.
	Keyboard *terminal.Keyboard
	Mixer    *audio.Mixer
	Library  *audio.Library
	Scores   scores.Repository // Scores aren't kept when nil.
	Config   tetris.Config
	NoGhost  bool
	Name     string
	Logger   *slog.Logger
}

func New(o *Options) (*Client, error) {
	if o.Keyboard == nil {
		return nil, fmt.Errorf("keyboard is required")
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Writer == nil {
		o.Writer = os.Stdout
	}
	if o.Mixer == nil {
		o.Mixer = audio.NewMixer()
	}
	if o.Library == nil {
		o.Library = &audio.Library{Sounds: map[string]audio.SampleID{}}
	}

	snd := newSounds(o.Mixer, o.Library, o.Logger)
	g, err := tetris.New(tetris.Options{
		Config: o.Config,
		Input:  o.Keyboard,
		Sink:   snd,
		Logger: o.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}
	return &Client{
		tetris:  g,
		render:  newRender(o.Writer, o.Logger, o.NoGhost, o.Name),
		keys:    o.Keyboard,
		mixer:   o.Mixer,
		sounds:  snd,
		scores:  o.Scores,
		options: o,
		logger:  o.Logger,
	}, nil
}

// Start runs the game and draws it until the player quits, the keyboard is
// interrupted or ctx is done.
func (c *Client) Start(ctx context.Context) {
	c.refreshBest(ctx)
	c.tetris.Start()
	defer c.tetris.Stop()
	defer c.logStats()

	for {
		select {
		case s := <-c.tetris.GetUpdate():
			c.update(ctx, s)
		case cmd := <-c.keys.Commands():
			c.command(cmd)
		case <-c.tetris.Done():
			// the final snapshot is published before Done is closed.
			if s := c.tetris.Read(); s != nil && s != c.last {
				c.update(ctx, s)
			}
			c.logger.Debug("game loop done")
			return
		case <-c.keys.Interrupt():
			c.logger.Info("keyboard interrupted")
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) update(ctx context.Context, s *tetris.Snapshot) {
	c.last = s
	c.record(ctx, s)
	c.render.draw(s)
}

func (c *Client) command(cmd terminal.Command) {
	switch cmd {
	case terminal.SFXUp:
		c.mixer.AdjustVolume(audio.SFX, volumeStep)
	case terminal.SFXDown:
		c.mixer.AdjustVolume(audio.SFX, -volumeStep)
	case terminal.MusicUp:
		c.mixer.AdjustVolume(audio.Music, volumeStep)
	case terminal.MusicDown:
		c.mixer.AdjustVolume(audio.Music, -volumeStep)
	case terminal.ToggleMusic:
		c.sounds.toggleMusic()
	}
	c.logger.Debug("command",
		slog.String("command", cmd.String()),
		slog.Float64("sfx", c.mixer.Volume(audio.SFX)),
		slog.Float64("music", c.mixer.Volume(audio.Music)),
		slog.Bool("music_paused", c.mixer.Paused(audio.Music)),
	)
	c.syncStatus()
	if c.last != nil {
		c.render.draw(c.last)
	}
}

// record saves the score of a finished game once.
func (c *Client) record(ctx context.Context, s *tetris.Snapshot) {
	if c.scores == nil || s.ID == "" || s.ID == c.recorded {
		return
	}
	switch s.Phase {
	case tetris.GameOverTransitionFill, tetris.GameOverTransitionClear, tetris.GameOver:
	default:
		return
	}
	c.recorded = s.ID
	err := c.scores.Save(ctx, &scores.Score{
		GameID: s.ID,
		Name:   c.options.Name,
		Score:  s.Stats.Score,
		Lines:  s.Stats.Lines,
		Level:  s.Stats.Level,
	})
	if err != nil {
		c.logger.Error("unable to save score", slog.String("game_id", s.ID), slog.String("error", err.Error()))
		return
	}
	c.logger.Info("score saved", slog.String("game_id", s.ID), slog.Int("score", s.Stats.Score))
	c.refreshBest(ctx)
}

func (c *Client) refreshBest(ctx context.Context) {
	if c.scores != nil {
		top, err := c.scores.Top(ctx, 1)
		if err != nil {
			c.logger.Error("unable to read best score", slog.String("error", err.Error()))
		} else if len(top) > 0 {
			c.best = top[0].Score
		}
	}
	c.syncStatus()
}

func (c *Client) logStats() {
	played, dropped := c.mixer.Stats()
	c.logger.Info("client stopped",
		slog.Uint64("sounds_played", played),
		slog.Uint64("sounds_dropped", dropped),
		slog.Int("active_voices", c.mixer.Active()),
	)
}

func (c *Client) syncStatus() {
	c.render.status(c.best, c.mixer.Volume(audio.SFX), c.mixer.Volume(audio.Music), c.sounds.muted.Load())
}
