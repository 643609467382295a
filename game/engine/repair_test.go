package engine

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRepairOldRecord(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &GameState{
		GameID:        "legacy",
		Players:       []Player{{ID: "a", Name: "Alice"}, {ID: "b", Name: "Bob"}},
		Words:         []WordInfo{{Text: "Cheese", AuthorID: "a", AddedAt: started.Add(time.Minute)}},
		StartedByID:   "a",
		RequiredWords: []string{"cheese", "pants"},
		StartedAt:     started,
		TurnTimeLimit: 20,
		// hasRequiredWords, phase and lastTurnStartTime are missing
		ConnectedPlayers: []string{"a", "a", "ghost"},
	}
	Repair(s)

	if s.Phase != PhasePlaying {
		t.Errorf("expected inferred phase playing, got %s", s.Phase)
	}
	if len(s.HasRequiredWords) != 2 || !s.HasRequiredWords[0] {
		t.Errorf("expected recomputed flags, got %v", s.HasRequiredWords)
	}
	if s.LastTurnStartTime == nil || !s.LastTurnStartTime.Equal(started.Add(time.Minute)) {
		t.Errorf("expected baseline from the last word, got %v", s.LastTurnStartTime)
	}
	if len(s.ConnectedPlayers) != 1 || s.ConnectedPlayers[0] != "a" {
		t.Errorf("expected connected players [a], got %v", s.ConnectedPlayers)
	}
	if !s.Players[0].IsCurrentTurn {
		t.Error("expected turn flag restored on index 0")
	}
	if err := Validate(s); err != nil {
		t.Errorf("repaired record should validate: %v", err)
	}
}

func TestRepairInfersPhase(t *testing.T) {
	ended := time.Now()
	tests := []struct {
		name  string
		state GameState
		want  Phase
	}{
		{"empty", GameState{}, PhaseLobby},
		{"words", GameState{Words: []WordInfo{{Text: "x"}}}, PhasePlaying},
		{"ended", GameState{EndedAt: &ended}, PhaseComplete},
		{"kept", GameState{Phase: PhaseLobby, Words: []WordInfo{{Text: "x"}}}, PhaseLobby},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.state
			Repair(&s)
			if s.Phase != tt.want {
				t.Errorf("expected %s, got %s", tt.want, s.Phase)
			}
		})
	}
}

func TestRepairClearsBaselineWithoutLimit(t *testing.T) {
	now := time.Now()
	s := &GameState{Phase: PhasePlaying, LastTurnStartTime: &now}
	Repair(s)
	if s.LastTurnStartTime != nil {
		t.Error("expected baseline cleared when no limit is set")
	}
}

func TestValidate(t *testing.T) {
	eng, _ := startedGame(t, Options{})
	mustAdd(t, eng, "a", "cheese")
	if err := Validate(eng.State()); err != nil {
		t.Fatalf("valid game rejected: %v", err)
	}

	bad := eng.Snapshot()
	bad.Players[1].IsCurrentTurn = true
	bad.HasRequiredWords[1] = true
	bad.ConnectedPlayers = append(bad.ConnectedPlayers, "ghost")
	bad.Phase = "weird"

	err := Validate(bad)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	for _, want := range []string{"unknown phase", "not derivable", "connected player", "hold the turn"} {
		found := false
		for _, p := range verr.Problems {
			if strings.Contains(p, want) {
				found = true
			}
		}
		if !found {
			t.Errorf("expected a problem mentioning %q in %v", want, verr.Problems)
		}
	}
}
