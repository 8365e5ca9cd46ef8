package audio

import (
	"os"
	"strconv"
	"time"
)

// Config holds the audio settings of the game.
type Config struct {
	Enabled        bool
	SFXVolume      float64 // 0.0-1.0
	MusicVolume    float64 // 0.0-1.0
	BufferDuration time.Duration
	ResourceDir    string // Directory with <sound>.wav and music<n>.wav files.
}

// DefaultConfig returns the settings used when no environment override is set.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		SFXVolume:      0.8,
		MusicVolume:    0.5,
		BufferDuration: 50 * time.Millisecond,
		ResourceDir:    "resources",
	}
}

// LoadConfig loads audio configuration from environment variables
func LoadConfig() *Config {
	cfg := DefaultConfig()

	if enabled := os.Getenv("BLOCKFALL_AUDIO_ENABLED"); enabled != "" {
		if val, err := strconv.ParseBool(enabled); err == nil {
			cfg.Enabled = val
		}
	}

	// volumes are 0-100
	if v, ok := percent("BLOCKFALL_SFX_VOLUME"); ok {
		cfg.SFXVolume = v
	}
	if v, ok := percent("BLOCKFALL_MUSIC_VOLUME"); ok {
		cfg.MusicVolume = v
	}

	if buf := os.Getenv("BLOCKFALL_AUDIO_BUFFER"); buf != "" {
		if val, err := time.ParseDuration(buf); err == nil && val > 0 {
			cfg.BufferDuration = val
		}
	}

	if dir := os.Getenv("BLOCKFALL_RESOURCES"); dir != "" {
		cfg.ResourceDir = dir
	}

	return cfg
}

func percent(key string) (float64, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return clamp(float64(val)/100.0, 0, 1), true
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
