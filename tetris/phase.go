package tetris

// Phase is the state of the game sequencer.
type Phase int

const (
	phaseInvalid Phase = iota // Never reached by a correct transition table.

	Splash
	InputMapping
	Title
	MusicConfig
	NewGame
	Control
	Pause
	Place
	RemoveLines
	Consolidate
	Respawn
	GameOverTransitionFill
	GameOverTransitionClear
	GameOver
	Quit

	phaseCount
)

var phaseNames = [phaseCount]string{
	phaseInvalid:            "invalid",
	Splash:                  "splash",
	InputMapping:            "input_mapping",
	Title:                   "title",
	MusicConfig:             "music_config",
	NewGame:                 "new_game",
	Control:                 "control",
	Pause:                   "pause",
	Place:                   "place",
	RemoveLines:             "remove_lines",
	Consolidate:             "consolidate",
	Respawn:                 "respawn",
	GameOverTransitionFill:  "game_over_fill",
	GameOverTransitionClear: "game_over_clear",
	GameOver:                "game_over",
	Quit:                    "quit",
}

func (p Phase) String() string {
	if p < 0 || p >= phaseCount {
		return "unknown"
	}
	return phaseNames[p]
}

// valid reports whether p is a phase with a body.
func (p Phase) valid() bool {
	return p > phaseInvalid && p < phaseCount
}

// Playing reports whether a game is in progress in this phase.
func (p Phase) Playing() bool {
	return p >= Control && p <= Respawn
}

// Sound is a sound effect the simulation asks for.
type Sound int

const (
	SoundMove Sound = iota
	SoundRotate
	SoundSoftDrop
	SoundHardDrop
	SoundLock
	SoundLineClear
	SoundTetris // Four rows at once.
	SoundPause
	SoundMenu
	SoundGameOver

	SoundCount int = iota
)

var soundNames = [SoundCount]string{
	SoundMove:      "move",
	SoundRotate:    "rotate",
	SoundSoftDrop:  "softdrop",
	SoundHardDrop:  "harddrop",
	SoundLock:      "lock",
	SoundLineClear: "lineclear",
	SoundTetris:    "tetris",
	SoundPause:     "pause",
	SoundMenu:      "menu",
	SoundGameOver:  "gameover",
}

func (s Sound) String() string {
	if s < 0 || int(s) >= SoundCount {
		return "unknown"
	}
	return soundNames[s]
}

type EffectKind int

const (
	EffectSound       EffectKind = iota // Play Sound once.
	EffectMusic                         // Loop Track, replacing the current music.
	EffectMusicStop                     // Silence the music.
	EffectMusicPause                    // Pause the music where it is.
	EffectMusicResume                   // Resume paused music.
)

// Effect is a side effect of a tick. The simulation only describes them;
// whoever runs the session decides how to carry them out.
type Effect struct {
	Kind  EffectKind
	Sound Sound
	Track int
}
