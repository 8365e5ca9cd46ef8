package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"blockfall/audio"
	"blockfall/client"
	"blockfall/scores"
	"blockfall/terminal"
	"blockfall/tetris"
)

func main() {
	cfg := tetris.DefaultConfig()
	name := flag.String("name", env("BLOCKFALL_NAME", os.Getenv("USER")), "player name for the high-score table")
	noGhost := flag.Bool("no-ghost", false, "don't draw the ghost piece")
	level := flag.Int("level", envInt("BLOCKFALL_LEVEL", cfg.StartLevel), "starting level")
	seed := flag.Uint64("seed", 0, "random seed, 0 picks one")
	randomizer := flag.String("randomizer", env("BLOCKFALL_RANDOMIZER", tetris.RandomBag), "piece randomizer: bag or uniform")
	db := flag.String("db", env("BLOCKFALL_DB", "blockfall.db"), "high-score database, empty to disable")
	logFile := flag.String("log-file", env("BLOCKFALL_LOG_FILE", "blockfall.log"), "log file")
	logLevel := flag.String("log-level", env("BLOCKFALL_LOG_LEVEL", "info"), "log level: debug, info, warn or error")
	flag.Parse()

	cfg.StartLevel = *level
	cfg.Seed = *seed
	cfg.Randomizer = *randomizer
	cfg = cfg.Seeded()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, closeLog, err := newLogger(*logFile, *logLevel)
	if err != nil {
		log.Fatalf("unable to open log file: %v", err)
	}
	defer closeLog()
	logger.Info("starting", slog.Uint64("seed", cfg.Seed), slog.String("randomizer", cfg.Randomizer))

	ctx := context.Background()

	ac := audio.LoadConfig()
	mixer := audio.NewMixer()
	mixer.SetVolume(audio.SFX, ac.SFXVolume)
	mixer.SetVolume(audio.Music, ac.MusicVolume)
	lib, err := audio.LoadLibrary(mixer, ac.ResourceDir, client.SoundNames(), cfg.MusicTracks, logger)
	if err != nil {
		log.Fatalf("unable to load sounds: %v", err)
	}
	out := audio.NewOutput(mixer, ac)
	if err := out.Start(); err != nil {
		logger.Error("audio disabled", slog.String("error", err.Error()))
	}
	defer out.Close()

	var repo scores.Repository
	if *db != "" {
		r, err := scores.NewSQLiteRepository(ctx, *db)
		if err != nil {
			log.Fatalf("unable to open high-score database: %v", err)
		}
		defer r.Close(ctx)
		repo = r
	}

	kb, err := terminal.Open(terminal.Options{Logger: logger})
	if err != nil {
		log.Fatalf("unable to open keyboard: %v", err)
	}
	defer kb.Close() //nolint: errcheck

	c, err := client.New(&client.Options{
		Keyboard: kb,
		Mixer:    mixer,
		Library:  lib,
		Scores:   repo,
		Config:   cfg,
		NoGhost:  *noGhost,
		Name:     *name,
		Logger:   logger,
	})
	if err != nil {
		kb.Close() //nolint: errcheck
		log.Fatalf("unable to start client: %v", err)
	}

	fmt.Print(terminal.HideCursor)
	defer fmt.Print(terminal.ShowCursor)
	c.Start(ctx)
}

func newLogger(path, level string) (*slog.Logger, func(), error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: l}))
	return logger, func() { f.Close() }, nil
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
