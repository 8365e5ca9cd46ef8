package client

import (
	"log/slog"
	"sync/atomic"

	"blockfall/audio"
	"blockfall/tetris"
)

type mixer interface {
	Queue(id audio.SampleID, ch audio.Channel, loop bool) bool
	StopChannel(ch audio.Channel)
	SetPaused(ch audio.Channel, paused bool)
	AdjustVolume(ch audio.Channel, delta float64) float64
	Volume(ch audio.Channel) float64
	Paused(ch audio.Channel) bool
	Active() int
	Stats() (played, dropped uint64)
}

// SoundNames lists the sample name of every tetris.Sound, in order.
func SoundNames() []string {
	names := make([]string, tetris.SoundCount)
	for i := range names {
		names[i] = tetris.Sound(i).String()
	}
	return names
}

// sounds carries out the audio effects of the game on a mixer. Apply runs
// on the game loop goroutine, toggleMusic on the client's.
type sounds struct {
	mixer   mixer
	library *audio.Library
	logger  *slog.Logger

	muted  atomic.Bool // Music muted by the player.
	paused atomic.Bool // Music paused by the game.
}

func newSounds(m mixer, lib *audio.Library, l *slog.Logger) *sounds {
	return &sounds{mixer: m, library: lib, logger: l}
}

// Apply implements tetris.EffectSink.
func (s *sounds) Apply(fx []tetris.Effect) {
	for _, e := range fx {
		switch e.Kind {
		case tetris.EffectSound:
			id, ok := s.library.Sounds[e.Sound.String()]
			if !ok {
				s.logger.Warn("no sample for sound", slog.String("sound", e.Sound.String()))
				continue
			}
			if !s.mixer.Queue(id, audio.SFX, false) {
				s.logger.Debug("sound dropped", slog.String("sound", e.Sound.String()))
			}
		case tetris.EffectMusic:
			s.mixer.StopChannel(audio.Music)
			s.paused.Store(false)
			s.syncPause()
			if len(s.library.Music) == 0 {
				continue
			}
			id := s.library.Music[e.Track%len(s.library.Music)]
			s.mixer.Queue(id, audio.Music, true)
		case tetris.EffectMusicStop:
			s.mixer.StopChannel(audio.Music)
		case tetris.EffectMusicPause:
			s.paused.Store(true)
			s.syncPause()
		case tetris.EffectMusicResume:
			s.paused.Store(false)
			s.syncPause()
		}
	}
}

func (s *sounds) toggleMusic() bool {
	m := !s.muted.Load()
	s.muted.Store(m)
	s.syncPause()
	return m
}

func (s *sounds) syncPause() {
	s.mixer.SetPaused(audio.Music, s.muted.Load() || s.paused.Load())
}
