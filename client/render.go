package client

import (
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"text/template"

	"blockfall/tetris"
)

const (
	// ASCII colors.
	Cyan    = "36"
	Blue    = "34"
	Orange  = "38;5;214"
	Yellow  = "33"
	Green   = "32"
	Red     = "31"
	Magenta = "35"
	White   = "37"

	resetPos = "\033[H" // Reset cursor position to 0,0

	empty = "  "
	ghost = "[]"

	boxWidth = 18
	boxRow   = 8 // Screen row of the message box.
	boxCol   = 3
)

//go:embed "layout.tmpl"
var layout string

var colorMap = map[tetris.Shape]string{
	tetris.I: Cyan,
	tetris.J: Blue,
	tetris.L: Orange,
	tetris.O: Yellow,
	tetris.S: Green,
	tetris.Z: Red,
	tetris.T: Magenta,
}

func cell(color string) string {
	return fmt.Sprintf("\x1b[7m\x1b[%sm[]\x1b[0m", color)
}

type templateData struct {
	Snap    *tetris.Snapshot
	NoGhost bool
	Name    string
	Best    int
	SFX     float64
	Music   float64
	Muted   bool
}

type render struct {
	writer   io.Writer
	logger   *slog.Logger
	template *template.Template
	*templateData
}

func newRender(w io.Writer, l *slog.Logger, noGhost bool, name string) *render {
	return &render{
		writer:       w,
		logger:       l,
		template:     loadTemplate(),
		templateData: &templateData{Name: name, NoGhost: noGhost},
	}
}

func (r *render) status(best int, sfx, music float64, muted bool) {
	r.Best = best
	r.SFX = sfx
	r.Music = music
	r.Muted = muted
}

// draw renders the playfield, the side panel and the message of the phase.
func (r *render) draw(s *tetris.Snapshot) {
	r.Snap = s
	fmt.Fprint(r.writer, resetPos)
	if err := r.template.Execute(r.writer, r.templateData); err != nil {
		r.logger.Error("unable to execute template", slog.String("error", err.Error()))
	}
	if lines := message(r.templateData); lines != nil {
		fmt.Fprint(r.writer, box(lines))
	}
}

func loadTemplate() *template.Template {
	funcMap := template.FuncMap{
		"stack":     stack,
		"nextPiece": nextPiece,
		"panel":     panel,
	}

	// we use the console raw so new lines don't automatically transform into carriage return
	// to fix that we add a carriage return to every new line in the layout.
	l := strings.ReplaceAll(layout, "\n", "\r\n")
	l = strings.ReplaceAll(l, "BLOCKFALL", "\033[1mBLOCKFALL\033[0m")
	return template.Must(template.New("layout").Funcs(funcMap).Parse(l))
}

// stack returns the playfield as screen rows: the top row first.
func stack(t *templateData) [tetris.Height][tetris.Width]string {
	var rendered [tetris.Height][tetris.Width]string
	for y := range rendered {
		for x := range rendered[y] {
			rendered[y][x] = empty
		}
	}
	if t == nil || t.Snap == nil {
		return rendered
	}
	s := t.Snap

	// we deduct from Height-1 because the playfield's row 0 is at the
	// bottom and the template ranges from the top of the screen.
	for y := range tetris.Height {
		for x := range tetris.Width {
			c := s.Field.Cells[y][x]
			if !c.Occupied {
				continue
			}
			rendered[tetris.Height-1-y][x] = cell(colorMap[c.Shape])
		}
		if s.Flash && slices.Contains(s.FullRows, y) {
			for x := range tetris.Width {
				rendered[tetris.Height-1-y][x] = cell(White)
			}
		}
	}

	if tm := s.Tetromino; tm != nil {
		// the piece goes on top of its ghost when they overlap.
		if !t.NoGhost {
			for c, r := range tm.Design.Cells(tm.Size) {
				put(&rendered, tm.X+c, s.GhostY+r, ghost)
			}
		}
		for c, r := range tm.Design.Cells(tm.Size) {
			put(&rendered, tm.X+c, tm.Y+r, cell(colorMap[tm.Shape]))
		}
	}
	return rendered
}

func put(rendered *[tetris.Height][tetris.Width]string, x, y int, v string) {
	if tetris.InBounds(x, y) {
		rendered[tetris.Height-1-y][x] = v
	}
}

// nextPiece renders the next tetromino in a 4x4 box, top row first.
func nextPiece(t *templateData) []string {
	rendered := make([]string, tetris.MaxSize)
	for i := range rendered {
		rendered[i] = strings.Repeat(empty, tetris.MaxSize)
	}
	if t == nil || t.Snap == nil || t.Snap.Next == nil {
		return rendered
	}
	n := t.Snap.Next
	for r := range tetris.MaxSize {
		row := make([]string, tetris.MaxSize)
		for c := range row {
			row[c] = empty
			if r < n.Size && c < n.Size && n.Design[r][c] {
				row[c] = cell(colorMap[n.Shape])
			}
		}
		rendered[tetris.MaxSize-1-r] = strings.Join(row, "")
	}
	return rendered
}

// panel returns the side panel text for screen row i of the playfield.
func panel(t *templateData, i int) string {
	if t == nil || t.Snap == nil {
		return ""
	}
	s := t.Snap
	switch i {
	case 0:
		return "  Next"
	case 1, 2, 3, 4:
		return "  " + nextPiece(t)[i-1]
	case 6:
		return fmt.Sprintf("  Score: %d", s.Stats.Score)
	case 7:
		return fmt.Sprintf("  Lines: %d", s.Stats.Lines)
	case 8:
		return fmt.Sprintf("  Level: %d", s.Stats.Level)
	case 9:
		return fmt.Sprintf("  Best:  %d", max(t.Best, s.Stats.Score))
	case 11:
		return fmt.Sprintf("  SFX   %s", meter(t.SFX))
	case 12:
		m := meter(t.Music)
		if t.Muted {
			m += " (muted)"
		}
		return fmt.Sprintf("  Music %s", m)
	case 14:
		return "  +/- sfx  [/] music  m mute"
	}
	return ""
}

func meter(v float64) string {
	n := int(v*10 + 0.5)
	n = min(max(n, 0), 10)
	return "[" + strings.Repeat("#", n) + strings.Repeat(".", 10-n) + "]"
}

// message returns the lines shown over the playfield for the current phase.
func message(t *templateData) []string {
	if t.Snap == nil {
		return nil
	}
	s := t.Snap
	switch s.Phase {
	case tetris.Splash:
		return []string{"BLOCKFALL", "", "enter to skip"}
	case tetris.InputMapping:
		return []string{"a/d or arrows move", "e/up q rotate", "s/down soft drop", "space hard drop", "p pause  esc back", "", "enter continue"}
	case tetris.Title:
		lines := []string{"BLOCKFALL", ""}
		if t.Best > 0 {
			lines = append(lines, fmt.Sprintf("best %d", t.Best), "")
		}
		return append(lines, "enter play", "esc quit")
	case tetris.MusicConfig:
		return []string{"music", fmt.Sprintf("< track %d/%d >", s.Track+1, s.Tracks), "", "enter start"}
	case tetris.Pause:
		return []string{"paused", "", "p resume", "esc title"}
	case tetris.GameOver:
		return []string{"game over", fmt.Sprintf("score %d", s.Stats.Score), "", "enter again", "esc title"}
	case tetris.Quit:
		return []string{"bye"}
	}
	return nil
}

// box draws lines centered in a bordered box over the playfield.
func box(lines []string) string {
	var b strings.Builder
	border := "+" + strings.Repeat("-", boxWidth) + "+"
	fmt.Fprintf(&b, "\033[%d;%dH%s", boxRow, boxCol, border)
	for i, l := range lines {
		fmt.Fprintf(&b, "\033[%d;%dH|%s|", boxRow+1+i, boxCol, center(l, boxWidth))
	}
	fmt.Fprintf(&b, "\033[%d;%dH%s", boxRow+1+len(lines), boxCol, border)
	return b.String()
}

func center(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	left := (width - len(s)) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-len(s)-left)
}
