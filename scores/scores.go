// Package scores keeps the high score table.
package scores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ErrNotFound = errors.New("score not found")

// Score is the result of a finished game.
type Score struct {
	ID        string
	GameID    string
	Name      string
	Score     int
	Lines     int
	Level     int
	CreatedAt time.Time
}

type Repository interface {
	Close(ctx context.Context) error
	Save(ctx context.Context, s *Score) error
	Top(ctx context.Context, limit int) ([]*Score, error)
	ByGame(ctx context.Context, gameID string) (*Score, error)
}

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository opens the database at path and runs the migrations.
// ":memory:" gives a throwaway database.
func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every connection to :memory: is a different database.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	entries, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		p := path.Join("migrations", entry.Name())
		migration, err := fs.ReadFile(migrations, p)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", p, err)
		}
		if _, err := db.ExecContext(ctx, string(migration)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", p, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

// Save stores s, filling in its ID and CreatedAt. Saving the same game
// twice keeps the first record.
func (r *SQLiteRepository) Save(ctx context.Context, s *Score) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.now()
	}
	q := `
	INSERT OR IGNORE INTO scores (score_id, game_id, name, score, lines, level, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?);
	`
	_, err := r.db.ExecContext(ctx, q, s.ID, s.GameID, s.Name, s.Score, s.Lines, s.Level, s.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert score: %w", err)
	}
	return nil
}

// Top returns the best limit scores, highest first. Ties go to the oldest.
func (r *SQLiteRepository) Top(ctx context.Context, limit int) ([]*Score, error) {
	q := `
	SELECT score_id, game_id, name, score, lines, level, created_at
	FROM scores ORDER BY score DESC, created_at ASC LIMIT ?;
	`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	var scores []*Score
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scores: %w", err)
	}
	return scores, nil
}

func (r *SQLiteRepository) ByGame(ctx context.Context, gameID string) (*Score, error) {
	q := `
	SELECT score_id, game_id, name, score, lines, level, created_at
	FROM scores WHERE game_id = ?;
	`
	s, err := scan(r.db.QueryRowContext(ctx, q, gameID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*Score, error) {
	var s Score
	var created int64
	if err := row.Scan(&s.ID, &s.GameID, &s.Name, &s.Score, &s.Lines, &s.Level, &created); err != nil {
		return nil, fmt.Errorf("failed to scan score: %w", err)
	}
	s.CreatedAt = time.UnixMilli(created)
	return &s, nil
}
