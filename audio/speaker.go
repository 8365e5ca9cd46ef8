package audio

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gopxl/beep/speaker"
)

// Output plays a Mixer through the system audio device.
type Output struct {
	mu          sync.Mutex
	initialized bool
	mixer       *Mixer
	cfg         *Config
}

func NewOutput(m *Mixer, cfg *Config) *Output {
	return &Output{mixer: m, cfg: cfg}
}

// Start opens the audio device and starts pulling frames from the mixer.
func (o *Output) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.initialized || !o.cfg.Enabled {
		return nil
	}
	if err := speaker.Init(SampleRate, SampleRate.N(o.cfg.BufferDuration)); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}
	speaker.Play(o.mixer)
	o.initialized = true
	return nil
}

// Close stops playback and releases the audio device.
func (o *Output) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.initialized {
		return
	}
	speaker.Clear()
	speaker.Close()
	o.initialized = false
}

// Library maps sound and music names to registered samples.
type Library struct {
	Sounds map[string]SampleID
	Music  []SampleID
}

// LoadLibrary registers a sample for every name in sounds and for tracks
// music tracks. <dir>/<name>.wav and <dir>/music<i>.wav are used when
// present; the synthesized versions are used otherwise or when a file can't
// be decoded.
func LoadLibrary(m *Mixer, dir string, sounds []string, tracks int, logger *slog.Logger) (*Library, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lib := &Library{Sounds: make(map[string]SampleID, len(sounds))}

	for _, name := range sounds {
		id, err := load(m, filepath.Join(dir, name+".wav"), Effect(name), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load sound %q: %w", name, err)
		}
		lib.Sounds[name] = id
	}
	for i := range tracks {
		id, err := load(m, filepath.Join(dir, "music"+strconv.Itoa(i)+".wav"), Track(i%Tracks()), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load music track %d: %w", i, err)
		}
		lib.Music = append(lib.Music, id)
	}
	return lib, nil
}

func load(m *Mixer, path string, fallback [][2]float64, logger *slog.Logger) (SampleID, error) {
	f, err := os.Open(path)
	if err == nil {
		defer f.Close()
		id, err := m.RegisterWAV(f)
		if err == nil {
			return id, nil
		}
		logger.Warn("unable to decode sample, using synthesized sound",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
	return m.Register(fallback)
}
