package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(v float64, n int) [][2]float64 {
	frames := make([][2]float64, n)
	for i := range frames {
		frames[i] = [2]float64{v, v}
	}
	return frames
}

func ramp(values ...float64) [][2]float64 {
	frames := make([][2]float64, len(values))
	for i, v := range values {
		frames[i] = [2]float64{v, -v}
	}
	return frames
}

func register(t *testing.T, m *Mixer, frames [][2]float64) SampleID {
	t.Helper()
	id, err := m.Register(frames)
	require.NoError(t, err)
	return id
}

func TestMixSumsVoices(t *testing.T) {
	m := NewMixer()
	a := register(t, m, constant(0.25, 8))
	b := register(t, m, constant(0.5, 8))
	m.SetVolume(SFX, 0.5)

	require.True(t, m.Queue(a, SFX, false))
	require.True(t, m.Queue(b, SFX, false))

	out := make([][2]float64, 4)
	m.Mix(out)
	for _, f := range out {
		assert.Equal(t, [2]float64{0.375, 0.375}, f)
	}
}

func TestMixClamps(t *testing.T) {
	m := NewMixer()
	a := register(t, m, ramp(0.8, 0.8))
	b := register(t, m, ramp(0.8, 0.1))
	m.Queue(a, SFX, false)
	m.Queue(b, SFX, false)

	out := make([][2]float64, 2)
	m.Mix(out)
	assert.Equal(t, [2]float64{1, -1}, out[0])
	assert.InDelta(t, 0.9, out[1][0], 1e-9)
	assert.InDelta(t, -0.9, out[1][1], 1e-9)
}

func TestMixOverwritesOutput(t *testing.T) {
	m := NewMixer()
	out := constant(0.7, 4)
	m.Mix(out)
	assert.Equal(t, constant(0, 4), out)
}

func TestZeroVolumeIsSilent(t *testing.T) {
	m := NewMixer()
	id := register(t, m, constant(0.9, 16))
	m.SetVolume(Music, 0)
	m.Queue(id, Music, true)

	out := make([][2]float64, 8)
	m.Mix(out)
	assert.Equal(t, constant(0, 8), out)
}

func TestOneShotDeactivatesAtTheEnd(t *testing.T) {
	m := NewMixer()
	id := register(t, m, ramp(0.1, 0.2, 0.3))
	m.Queue(id, SFX, false)

	out := make([][2]float64, 2)
	m.Mix(out)
	assert.Equal(t, 1, m.Active())
	assert.Equal(t, 2, m.voices[0].cursor)

	m.Mix(out)
	assert.Equal(t, [2]float64{0.3, -0.3}, out[0])
	assert.Equal(t, [2]float64{0, 0}, out[1])
	assert.Equal(t, 0, m.Active())
}

func TestOneShotEndingOnTheBuffer(t *testing.T) {
	m := NewMixer()
	id := register(t, m, ramp(0.1, 0.2))
	m.Queue(id, SFX, false)

	m.Mix(make([][2]float64, 2))
	assert.Equal(t, 0, m.Active())
}

func TestLoopWraps(t *testing.T) {
	m := NewMixer()
	id := register(t, m, ramp(0.1, 0.2, 0.3))
	m.Queue(id, Music, true)

	out := make([][2]float64, 3)
	m.Mix(out)
	assert.Equal(t, 1, m.Active())
	assert.Equal(t, 0, m.voices[0].cursor)

	out = make([][2]float64, 5)
	m.Mix(out)
	assert.Equal(t, ramp(0.1, 0.2, 0.3, 0.1, 0.2), out)
	assert.Equal(t, 2, m.voices[0].cursor)
	assert.Equal(t, 1, m.Active())
}

func TestPausedChannelKeepsPosition(t *testing.T) {
	m := NewMixer()
	music := register(t, m, ramp(0.1, 0.2, 0.3, 0.4))
	sfx := register(t, m, constant(0.5, 4))
	m.Queue(music, Music, true)

	out := make([][2]float64, 1)
	m.Mix(out)

	m.SetPaused(Music, true)
	assert.True(t, m.Paused(Music))
	m.Queue(sfx, SFX, false)
	m.Mix(out)
	assert.Equal(t, [2]float64{0.5, 0.5}, out[0], "sfx plays while music is paused")
	assert.Equal(t, 1, m.voices[0].cursor)

	m.SetPaused(Music, false)
	m.Mix(out)
	assert.InDelta(t, 0.2+0.5, out[0][0], 1e-9)
}

func TestVoicePoolExhaustion(t *testing.T) {
	m := NewMixer()
	id := register(t, m, constant(0.1, 4))
	for i := range MaxVoices {
		require.True(t, m.Queue(id, SFX, false), "voice %d", i)
	}
	assert.False(t, m.Queue(id, SFX, false))

	played, dropped := m.Stats()
	assert.Equal(t, uint64(MaxVoices), played)
	assert.Equal(t, uint64(1), dropped)

	// finished voices are reused
	m.Mix(make([][2]float64, 4))
	assert.True(t, m.Queue(id, SFX, false))
}

func TestQueueRejectsUnknownSamples(t *testing.T) {
	m := NewMixer()
	assert.False(t, m.Queue(0, SFX, false))
	assert.False(t, m.Queue(InvalidSample, SFX, false))

	id := register(t, m, constant(0.1, 4))
	assert.False(t, m.Queue(id, Channel(7), false))
}

func TestRegister(t *testing.T) {
	m := NewMixer()

	id, err := m.Register(nil)
	assert.ErrorIs(t, err, ErrEmptySample)
	assert.Equal(t, InvalidSample, id)

	frames := constant(0.3, 2)
	id = register(t, m, frames)
	frames[0][0] = 1
	assert.Equal(t, 0.3, m.samples[id][0][0], "the mixer keeps its own copy")

	for len(m.samples) < MaxSamples {
		register(t, m, frames)
	}
	id, err = m.Register(frames)
	assert.ErrorIs(t, err, ErrStoreFull)
	assert.Equal(t, InvalidSample, id)
}

func TestVolume(t *testing.T) {
	m := NewMixer()
	assert.Equal(t, 1.0, m.Volume(SFX))

	assert.Equal(t, 1.0, m.AdjustVolume(SFX, 0.5))
	assert.InDelta(t, 0.8, m.AdjustVolume(SFX, -0.2), 1e-9)
	assert.Equal(t, 0.0, m.AdjustVolume(SFX, -3))

	m.SetVolume(Music, 7)
	assert.Equal(t, 1.0, m.Volume(Music))
	m.SetVolume(Music, -1)
	assert.Equal(t, 0.0, m.Volume(Music))
}

func TestStopChannel(t *testing.T) {
	m := NewMixer()
	id := register(t, m, constant(0.1, 4))
	m.Queue(id, Music, true)
	m.Queue(id, SFX, false)

	m.StopChannel(Music)
	assert.Equal(t, 1, m.Active())
	assert.Equal(t, SFX, m.voices[1].channel)
}

func TestStream(t *testing.T) {
	m := NewMixer()
	id := register(t, m, constant(0.2, 4))
	m.Queue(id, SFX, false)

	buf := make([][2]float64, 16)
	n, ok := m.Stream(buf)
	assert.Equal(t, 16, n)
	assert.True(t, ok)
	assert.NoError(t, m.Err())
	assert.Equal(t, [2]float64{0.2, 0.2}, buf[3])
	assert.Equal(t, [2]float64{0, 0}, buf[4])
}

// wavFile builds a 16 bit PCM WAV file.
func wavFile(rate, channels int, samples []int16) []byte {
	var b bytes.Buffer
	dataLen := len(samples) * 2
	w := func(v any) { _ = binary.Write(&b, binary.LittleEndian, v) }

	b.WriteString("RIFF")
	w(uint32(36 + dataLen))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	w(uint32(16))
	w(uint16(1)) // PCM
	w(uint16(channels))
	w(uint32(rate))
	w(uint32(rate * channels * 2))
	w(uint16(channels * 2))
	w(uint16(16))
	b.WriteString("data")
	w(uint32(dataLen))
	w(samples)
	return b.Bytes()
}

func TestRegisterWAV(t *testing.T) {
	t.Run("canonical rate", func(t *testing.T) {
		m := NewMixer()
		// half scale left, quarter scale right
		data := wavFile(int(SampleRate), 2, []int16{16384, 8192, 16384, 8192, 16384, 8192})
		id, err := m.RegisterWAV(bytes.NewReader(data))
		require.NoError(t, err)
		require.Len(t, m.samples[id], 3)
		assert.InDelta(t, 0.5, m.samples[id][0][0], 1e-3)
		assert.InDelta(t, 0.25, m.samples[id][0][1], 1e-3)
	})

	t.Run("resampled", func(t *testing.T) {
		m := NewMixer()
		samples := make([]int16, 2000)
		for i := range samples {
			samples[i] = int16(i % 100 * 100)
		}
		id, err := m.RegisterWAV(bytes.NewReader(wavFile(int(SampleRate)/2, 1, samples)))
		require.NoError(t, err)
		assert.Greater(t, len(m.samples[id]), len(samples))
	})

	t.Run("invalid data", func(t *testing.T) {
		m := NewMixer()
		id, err := m.RegisterWAV(bytes.NewReader([]byte("definitely not a wav file, sorry")))
		assert.ErrorIs(t, err, ErrInvalidSample)
		assert.Equal(t, InvalidSample, id)
		assert.Empty(t, m.samples)
	})
}

func TestChannelString(t *testing.T) {
	for ch, want := range map[Channel]string{Music: "music", SFX: "sfx", Channel(9): "unknown"} {
		assert.Equal(t, want, ch.String(), fmt.Sprint(int(ch)))
	}
}

func TestConcurrentQueueAndMix(t *testing.T) {
	m := NewMixer()
	short := register(t, m, constant(0.5, 64))
	long := register(t, m, constant(0.25, 4096))

	var (
		mixing    sync.WaitGroup
		producers sync.WaitGroup
		stop      atomic.Bool
		overflow  atomic.Int64
		attempts  atomic.Uint64
		accepted  atomic.Uint64
	)
	mixing.Add(1)
	go func() {
		defer mixing.Done()
		out := make([][2]float64, 256)
		for !stop.Load() {
			m.Mix(out)
			for _, f := range out {
				if f[0] > 1 || f[0] < -1 || f[1] > 1 || f[1] < -1 {
					overflow.Add(1)
				}
			}
			if m.Active() > MaxVoices {
				overflow.Add(1)
			}
		}
	}()

	queue := func(id SampleID, ch Channel, loop bool) {
		attempts.Add(1)
		if m.Queue(id, ch, loop) {
			accepted.Add(1)
		}
	}
	for w := range 4 {
		producers.Add(1)
		go func() {
			defer producers.Done()
			for i := range 500 {
				queue(short, SFX, false)
				switch (w + i) % 5 {
				case 0:
					queue(long, Music, true)
				case 1:
					m.AdjustVolume(SFX, -0.05)
					m.AdjustVolume(SFX, 0.05)
				case 2:
					m.SetPaused(Music, i%2 == 0)
				case 3:
					m.StopChannel(Music)
				}
				if m.Active() > MaxVoices {
					overflow.Add(1)
				}
			}
		}()
	}
	producers.Wait()
	stop.Store(true)
	mixing.Wait()

	assert.Zero(t, overflow.Load(), "wanted the voice pool and the output to stay in bounds")
	played, dropped := m.Stats()
	assert.Equal(t, accepted.Load(), played)
	assert.Equal(t, attempts.Load(), played+dropped, "wanted every queued sound counted once")
	assert.LessOrEqual(t, m.Active(), MaxVoices)
	assert.InDelta(t, 1, m.Volume(SFX), 1e-9)
}
