package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wricardo/cheese-pants/game/engine"
	"github.com/wricardo/cheese-pants/game/session"
)

func clock() func() time.Time {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(10 * time.Second)
		return now
	}
}

func newGame(t *testing.T, id string, words ...string) *engine.GameState {
	t.Helper()
	e := engine.New(id, engine.Options{RequiredWords: []string{"cheese", "pants"}}, clock())
	if _, err := e.Join("a", "Alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Join("b", "Bob"); err != nil {
		t.Fatal(err)
	}
	if err := e.Start("a"); err != nil {
		t.Fatal(err)
	}
	actors := []string{"a", "b"}
	for i, w := range words {
		if _, err := e.AddWord(actors[i%2], w); err != nil {
			t.Fatalf("add %q: %v", w, err)
		}
	}
	return e.Snapshot()
}

func seed(t *testing.T, store session.Persistence, states ...*engine.GameState) {
	t.Helper()
	for _, s := range states {
		if err := store.Save(context.Background(), s); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAnalyze(t *testing.T) {
	won := newGame(t, "won", "cheese", "big", "pants.")
	stalled := newGame(t, "stalled")
	lobby := engine.New("lobby", engine.Options{}, clock()).Snapshot()

	report := analyze([]*engine.GameState{won, stalled, lobby})
	tot := report.Totals

	if tot.Games != 3 || tot.TotalWords != 3 {
		t.Errorf("Unexpected totals %+v", tot)
	}
	if tot.ByPhase["complete"] != 1 || tot.ByPhase["playing"] != 1 || tot.ByPhase["lobby"] != 1 {
		t.Errorf("Unexpected phase counts %v", tot.ByPhase)
	}
	if tot.AvgWordsPerWin != 3 {
		t.Errorf("Expected 3 words per win, got %v", tot.AvgWordsPerWin)
	}
	if tot.TopContributor != "Alice" {
		t.Errorf("Expected Alice as top contributor, got %q", tot.TopContributor)
	}
	if len(tot.Stalled) != 1 || tot.Stalled[0] != "stalled" {
		t.Errorf("Unexpected stalled games %v", tot.Stalled)
	}
	if len(report.Games) != 3 || report.Games[0].Sentence != "cheese big pants." {
		t.Errorf("Unexpected summaries %+v", report.Games)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	report := analyze(nil)
	if report.Totals.Games != 0 || report.Totals.TopContributor != "" || report.Totals.AvgWordsPerWin != 0 {
		t.Errorf("Unexpected totals %+v", report.Totals)
	}
}

func TestTopContributorTieBreaksByName(t *testing.T) {
	g := newGame(t, "tie", "cheese", "pants")
	if got := analyze([]*engine.GameState{g}).Totals.TopContributor; got != "Alice" {
		t.Errorf("Expected alphabetical tie-break, got %q", got)
	}
}

func TestRunFromDirectory(t *testing.T) {
	dir := t.TempDir()
	store, closeStore, err := openStore(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	defer closeStore()
	seed(t, store, newGame(t, "g1", "cheese", "big", "pants."), newGame(t, "g2"))

	var out bytes.Buffer
	if err := run(context.Background(), &out, store, nil, false); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	for _, want := range []string{
		"=== Game g1 (complete) ===",
		"Sentence: cheese big pants.",
		"1. Alice",
		"🏆 Sentence Finisher: Alice",
		"=== Game g2 (playing) ===",
		"No words yet",
		"Games: 2 (lobby 0, playing 1, complete 1)",
		"⚠️  WARNING: 1 started games have no words: g2",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in output:\n%s", want, text)
		}
	}
	if strings.Index(text, "Game g1") > strings.Index(text, "Game g2") {
		t.Error("Expected games sorted by ID")
	}
}

func TestRunSelectedGames(t *testing.T) {
	store, closeStore, err := openStore(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	defer closeStore()
	seed(t, store, newGame(t, "g1", "cheese"), newGame(t, "g2", "pants"))

	var out bytes.Buffer
	if err := run(context.Background(), &out, store, []string{"g2"}, false); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.String(), "Game g1") || !strings.Contains(out.String(), "Game g2") {
		t.Errorf("Unexpected output:\n%s", out.String())
	}

	if err := run(context.Background(), &out, store, []string{"ghost"}, false); err == nil {
		t.Error("Expected error for unknown game")
	}
}

func TestRunJSONFromSQLite(t *testing.T) {
	store, closeStore, err := openStore("", filepath.Join(t.TempDir(), "games.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer closeStore()
	seed(t, store, newGame(t, "g1", "cheese", "big", "pants."))

	var out bytes.Buffer
	if err := run(context.Background(), &out, store, nil, true); err != nil {
		t.Fatal(err)
	}

	var report Report
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(report.Games) != 1 || report.Games[0].LongestWord != "cheese" {
		t.Errorf("Unexpected report %+v", report)
	}
	if report.Games[0].Duration == "" {
		t.Error("Expected duration for a completed game")
	}
}

func TestCommandFlags(t *testing.T) {
	dir := t.TempDir()
	store, _, err := openStore(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	seed(t, store, newGame(t, "g1", "cheese"))

	var out bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &out
	if err := cmd.Run(context.Background(), []string{"analyze", "--dir", dir, "--json"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"games": 1`) {
		t.Errorf("Unexpected output:\n%s", out.String())
	}
}
