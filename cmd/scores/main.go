package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"blockfall/scores"
)

func main() {
	db := flag.String("db", "blockfall.db", "high-score database")
	limit := flag.Int("n", 10, "number of scores to list")
	game := flag.String("game", "", "show the score of a single game id")
	flag.Parse()

	ctx := context.Background()
	r, err := scores.NewSQLiteRepository(ctx, *db)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer r.Close(ctx)

	if err := run(ctx, os.Stdout, r, *game, *limit); err != nil {
		log.Fatal(err)
	}
}

// run prints the score of game, or the top limit scores when game is empty.
func run(ctx context.Context, w io.Writer, r scores.Repository, game string, limit int) error {
	if game != "" {
		s, err := r.ByGame(ctx, game)
		if errors.Is(err, scores.ErrNotFound) {
			fmt.Fprintf(w, "no score for game %s\n", game)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read score: %w", err)
		}
		printScores(w, []*scores.Score{s})
		return nil
	}

	top, err := r.Top(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list scores: %w", err)
	}
	if len(top) == 0 {
		fmt.Fprintln(w, "no scores yet")
		return nil
	}
	printScores(w, top)
	return nil
}

func printScores(out io.Writer, top []*scores.Score) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tSCORE\tLINES\tLEVEL\tDATE")
	for i, s := range top {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%s\n", i+1, s.Name, s.Score, s.Lines, s.Level, s.CreatedAt.Format(time.DateTime))
	}
	w.Flush()
}
