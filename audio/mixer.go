// Package audio mixes registered samples into a single output stream.
//
// Every sample is converted to the canonical format (SampleRate, stereo,
// float64 frames) when it is registered, so mixing never converts anything.
// Queue is called from the game loop and Mix from the speaker goroutine; a
// single mutex guards the voices, samples and channel state they share.
package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

const (
	SampleRate = beep.SampleRate(44100)

	MaxSamples = 64
	MaxVoices  = 16

	resampleQuality = 4
)

// SampleID identifies a registered sample.
type SampleID int

// InvalidSample is returned when a sample could not be registered.
const InvalidSample SampleID = -1

// Channel is a mixing bus with its own volume and pause flag.
type Channel int

const (
	Music Channel = iota
	SFX

	channelCount
)

func (c Channel) String() string {
	switch c {
	case Music:
		return "music"
	case SFX:
		return "sfx"
	}
	return "unknown"
}

func (c Channel) valid() bool { return c >= 0 && c < channelCount }

var (
	ErrStoreFull     = errors.New("sample store full")
	ErrInvalidSample = errors.New("invalid sample")
	ErrEmptySample   = errors.New("empty sample")
)

// voice is a playback slot.
type voice struct {
	active  bool
	sample  SampleID
	cursor  int // Next frame to play.
	channel Channel
	loop    bool
}

type channelState struct {
	volume float64
	paused bool
}

// Mixer owns the registered samples, a fixed pool of voices and the channel
// state. It implements beep.Streamer so it can be handed to the speaker.
type Mixer struct {
	mu       sync.Mutex
	samples  [][][2]float64
	voices   [MaxVoices]voice
	channels [channelCount]channelState

	played  uint64
	dropped uint64
}

// NewMixer returns a mixer with both channels at full volume.
func NewMixer() *Mixer {
	m := &Mixer{samples: make([][][2]float64, 0, MaxSamples)}
	for i := range m.channels {
		m.channels[i].volume = 1
	}
	return m
}

// Register stores frames, which must already be in the canonical format.
// The mixer keeps its own copy.
func (m *Mixer) Register(frames [][2]float64) (SampleID, error) {
	if len(frames) == 0 {
		return InvalidSample, ErrEmptySample
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.samples) >= MaxSamples {
		return InvalidSample, ErrStoreFull
	}
	s := make([][2]float64, len(frames))
	copy(s, frames)
	m.samples = append(m.samples, s)
	return SampleID(len(m.samples) - 1), nil
}

// RegisterWAV decodes a WAV stream, resamples it to SampleRate if needed and
// registers it.
func (m *Mixer) RegisterWAV(r io.Reader) (SampleID, error) {
	frames, err := decodeWAV(r)
	if err != nil {
		return InvalidSample, err
	}
	return m.Register(frames)
}

func decodeWAV(r io.Reader) ([][2]float64, error) {
	streamer, format, err := wav.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSample, err)
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	if format.SampleRate != SampleRate {
		s = beep.Resample(resampleQuality, format.SampleRate, SampleRate, streamer)
	}

	var frames [][2]float64
	buf := make([][2]float64, 512)
	for {
		n, ok := s.Stream(buf)
		frames = append(frames, buf[:n]...)
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSample, err)
	}
	return frames, nil
}

// Queue starts playing sample id on channel. It reports false, and the
// sound is dropped, when no voice is free or id is unknown.
func (m *Mixer) Queue(id SampleID, ch Channel, loop bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id < 0 || int(id) >= len(m.samples) || !ch.valid() {
		m.dropped++
		return false
	}
	for i := range m.voices {
		if m.voices[i].active {
			continue
		}
		m.voices[i] = voice{active: true, sample: id, channel: ch, loop: loop}
		m.played++
		return true
	}
	m.dropped++
	return false
}

// Mix overwrites out with the sum of every active voice on an unpaused
// channel, each scaled by its channel volume and clamped to [-1, 1].
func (m *Mixer) Mix(out [][2]float64) {
	clear(out)

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.voices {
		v := &m.voices[i]
		if !v.active {
			continue
		}
		ch := m.channels[v.channel]
		if ch.paused {
			continue
		}
		sample := m.samples[v.sample]

		for j := 0; j < len(out); {
			n := copyScaled(out[j:], sample[v.cursor:], ch.volume)
			v.cursor += n
			j += n
			if v.cursor < len(sample) {
				break
			}
			if !v.loop {
				v.active = false
				break
			}
			v.cursor = 0
		}
	}
}

// copyScaled adds src*volume into dst and returns the number of frames added.
func copyScaled(dst, src [][2]float64, volume float64) int {
	n := min(len(dst), len(src))
	for k := range n {
		for c := range 2 {
			dst[k][c] = clamp(dst[k][c]+src[k][c]*volume, -1, 1)
		}
	}
	return n
}

// Stream implements beep.Streamer. It never runs out of frames: silence is
// mixed when nothing plays.
func (m *Mixer) Stream(samples [][2]float64) (int, bool) {
	m.Mix(samples)
	return len(samples), true
}

// Err implements beep.Streamer.
func (m *Mixer) Err() error { return nil }

// SetVolume sets the volume of ch, clamped to [0, 1].
func (m *Mixer) SetVolume(ch Channel, v float64) {
	if !ch.valid() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch].volume = clamp(v, 0, 1)
}

// AdjustVolume adds delta to the volume of ch and returns the new, clamped, volume.
func (m *Mixer) AdjustVolume(ch Channel, delta float64) float64 {
	if !ch.valid() {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := clamp(m.channels[ch].volume+delta, 0, 1)
	m.channels[ch].volume = v
	return v
}

func (m *Mixer) Volume(ch Channel) float64 {
	if !ch.valid() {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels[ch].volume
}

// SetPaused pauses or resumes every voice on ch. Paused voices keep their position.
func (m *Mixer) SetPaused(ch Channel, paused bool) {
	if !ch.valid() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch].paused = paused
}

func (m *Mixer) Paused(ch Channel) bool {
	if !ch.valid() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels[ch].paused
}

// StopChannel frees every voice playing on ch.
func (m *Mixer) StopChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.voices {
		if m.voices[i].channel == ch {
			m.voices[i].active = false
		}
	}
}

// Active returns the number of voices in use.
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, v := range m.voices {
		if v.active {
			n++
		}
	}
	return n
}

// Stats returns how many sounds were queued and how many were dropped.
func (m *Mixer) Stats() (played, dropped uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.played, m.dropped
}
