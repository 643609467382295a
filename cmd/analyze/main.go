// Command analyze prints human-readable reports about stored games. For each
// record it shows the sentence, player rankings and achievements, and it
// closes with totals across the store. Records are read from the file store
// directory or, with --sqlite, from a SQLite database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/cheese-pants/game/engine"
	"github.com/wricardo/cheese-pants/game/session"
)

// Totals aggregates every analyzed game
type Totals struct {
	Games          int            `json:"games"`
	ByPhase        map[string]int `json:"byPhase"`
	TotalWords     int            `json:"totalWords"`
	AvgWordsPerWin float64        `json:"avgWordsPerWin"`
	TopContributor string         `json:"topContributor,omitempty"`
	Stalled        []string       `json:"stalled"`
}

// Report is the full analysis output
type Report struct {
	Games  []engine.Summary `json:"games"`
	Totals Totals           `json:"totals"`
}

// openStore returns the record store selected by the flags
func openStore(dir, sqliteDSN string) (session.Persistence, func() error, error) {
	if sqliteDSN != "" {
		store, err := session.OpenSQL("sqlite", sqliteDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	store, err := session.NewFilePersistence(dir)
	if err != nil {
		return nil, nil, err
	}
	return store, func() error { return nil }, nil
}

// loadStates reads the requested games, or every stored game when ids is
// empty. Records come back repaired and sorted by game ID.
func loadStates(ctx context.Context, store session.Persistence, ids []string) ([]*engine.GameState, error) {
	if len(ids) == 0 {
		var err error
		if ids, err = store.ListAll(ctx); err != nil {
			return nil, fmt.Errorf("failed to list games: %w", err)
		}
	}
	sort.Strings(ids)

	states := make([]*engine.GameState, 0, len(ids))
	for _, id := range ids {
		state, err := store.Load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load game %s: %w", id, err)
		}
		states = append(states, state)
	}
	return states, nil
}

// analyze summarizes every state and computes the totals
func analyze(states []*engine.GameState) Report {
	report := Report{
		Games: lo.Map(states, func(s *engine.GameState, _ int) engine.Summary { return engine.Summarize(s) }),
		Totals: Totals{
			Games:   len(states),
			ByPhase: map[string]int{},
			Stalled: []string{},
		},
	}

	contributions := map[string]int{}
	for _, s := range states {
		report.Totals.ByPhase[string(s.Phase)]++
		report.Totals.TotalWords += len(s.Words)
		for _, w := range s.Words {
			contributions[w.AuthorName]++
		}
		if s.Phase == engine.PhasePlaying && len(s.Words) == 0 {
			report.Totals.Stalled = append(report.Totals.Stalled, s.GameID)
		}
	}

	won := lo.Filter(states, func(s *engine.GameState, _ int) bool { return s.Phase == engine.PhaseComplete })
	if len(won) > 0 {
		words := lo.SumBy(won, func(s *engine.GameState) int { return len(s.Words) })
		report.Totals.AvgWordsPerWin = float64(words) / float64(len(won))
	}

	if len(contributions) > 0 {
		names := lo.Keys(contributions)
		sort.Strings(names)
		report.Totals.TopContributor = lo.MaxBy(names, func(a, b string) bool {
			return contributions[a] > contributions[b]
		})
	}
	return report
}

func printSummary(w io.Writer, sum engine.Summary) {
	fmt.Fprintf(w, "\n=== Game %s (%s) ===\n", sum.GameID, sum.Phase)
	if sum.WordCount == 0 {
		fmt.Fprintln(w, "No words yet")
		return
	}
	fmt.Fprintf(w, "Sentence: %s\n", sum.Sentence)
	fmt.Fprintf(w, "Words: %d, Characters: %d, Longest: %s\n", sum.WordCount, sum.SentenceLength, sum.LongestWord)
	if sum.Duration != "" {
		fmt.Fprintf(w, "Duration: %s\n", sum.Duration)
	}

	fmt.Fprintln(w, "Rankings:")
	for i, p := range sum.Rankings {
		fmt.Fprintf(w, "  %d. %s - %d words, avg %.1f, %d required (score %.1f)\n",
			i+1, p.Name, p.WordsAdded, p.AvgWordLength, p.RequiredWordsUsed, p.Score)
	}
	if len(sum.Achievements) > 0 {
		fmt.Fprintln(w, "Achievements:")
		for _, a := range sum.Achievements {
			fmt.Fprintf(w, "  🏆 %s: %s\n", a.Title, a.Player)
		}
	}
}

func printReport(w io.Writer, report Report) {
	for _, sum := range report.Games {
		printSummary(w, sum)
	}

	t := report.Totals
	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	fmt.Fprintf(w, "Games: %d (lobby %d, playing %d, complete %d)\n", t.Games,
		t.ByPhase[string(engine.PhaseLobby)], t.ByPhase[string(engine.PhasePlaying)], t.ByPhase[string(engine.PhaseComplete)])
	fmt.Fprintf(w, "Total words: %d\n", t.TotalWords)
	if t.AvgWordsPerWin > 0 {
		fmt.Fprintf(w, "Average words per completed sentence: %.1f\n", t.AvgWordsPerWin)
	}
	if t.TopContributor != "" {
		fmt.Fprintf(w, "Top contributor: %s\n", t.TopContributor)
	}
	if len(t.Stalled) > 0 {
		fmt.Fprintf(w, "⚠️  WARNING: %d started games have no words: %s\n", len(t.Stalled), strings.Join(t.Stalled, ", "))
	}
}

func run(ctx context.Context, w io.Writer, store session.Persistence, ids []string, asJSON bool) error {
	states, err := loadStates(ctx, store, ids)
	if err != nil {
		return err
	}
	report := analyze(states)

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(w, report)
	return nil
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Summarize stored games",
		ArgsUsage: "[game-id...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Value: "games", Usage: "directory of game records", Sources: cli.EnvVars("CHEESEPANTS_STORAGE_DIR")},
			&cli.StringFlag{Name: "sqlite", Usage: "read from this SQLite database instead of --dir"},
			&cli.BoolFlag{Name: "json", Usage: "print the report as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, closeStore, err := openStore(cmd.String("dir"), cmd.String("sqlite"))
			if err != nil {
				return err
			}
			defer closeStore()
			return run(ctx, cmd.Root().Writer, store, cmd.Args().Slice(), cmd.Bool("json"))
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
