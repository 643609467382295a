package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Repair fills in defaults for fields that older stored records lack and
// normalizes anything that can be rederived. It never changes phase once
// one is recorded.
func Repair(s *GameState) {
	if s.Players == nil {
		s.Players = []Player{}
	}
	if s.ConnectedPlayers == nil {
		s.ConnectedPlayers = []string{}
	}
	if s.Words == nil {
		s.Words = []WordInfo{}
	}
	if len(s.RequiredWords) < MinRequiredWords {
		s.RequiredWords = CleanRequiredWords(s.RequiredWords)
	}
	if s.TurnTimeLimit < 0 {
		s.TurnTimeLimit = 0
	}
	if s.TurnTimeLimit == 0 {
		s.LastTurnStartTime = nil
	}

	if s.Phase == "" {
		switch {
		case s.EndedAt != nil:
			s.Phase = PhaseComplete
		case len(s.Words) > 0:
			s.Phase = PhasePlaying
		default:
			s.Phase = PhaseLobby
		}
	}

	if s.Phase == PhasePlaying && s.TurnTimeLimit > 0 && s.LastTurnStartTime == nil {
		// Start the countdown fresh rather than expiring a turn instantly.
		if n := len(s.Words); n > 0 {
			s.LastTurnStartTime = lo.ToPtr(s.Words[n-1].AddedAt)
		} else {
			s.LastTurnStartTime = lo.ToPtr(s.StartedAt)
		}
	}

	s.ConnectedPlayers = lo.Filter(lo.Uniq(s.ConnectedPlayers), func(id string, _ int) bool {
		return slices.ContainsFunc(s.Players, func(p Player) bool { return p.ID == id })
	})
	RecomputeRequired(s)
	clampTurnIndex(s)
}

func requiredConsistent(s *GameState) bool {
	c := s.Clone()
	RecomputeRequired(c)
	return slices.Equal(c.HasRequiredWords, s.HasRequiredWords)
}

// ValidationError lists every invariant a record violates
type ValidationError struct {
	GameID   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("game %s: %s", e.GameID, strings.Join(e.Problems, "; "))
}

// Validate checks a state against the data-model invariants without
// modifying it. It returns a *ValidationError describing every problem.
func Validate(s *GameState) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if s.GameID == "" {
		add("gameId is empty")
	}
	switch s.Phase {
	case PhaseLobby, PhasePlaying, PhaseComplete:
	default:
		add("unknown phase %q", s.Phase)
	}
	if len(s.RequiredWords) < MinRequiredWords {
		add("requiredWords has %d entries, need at least %d", len(s.RequiredWords), MinRequiredWords)
	}
	if len(s.HasRequiredWords) != len(s.RequiredWords) {
		add("hasRequiredWords length %d does not match requiredWords length %d", len(s.HasRequiredWords), len(s.RequiredWords))
	} else if !requiredConsistent(s) {
		add("hasRequiredWords is not derivable from words")
	}
	if s.TurnTimeLimit < 0 {
		add("turnTimeLimit is negative")
	}

	ids := lo.Map(s.Players, func(p Player, _ int) string { return p.ID })
	if dup := lo.FindDuplicates(ids); len(dup) > 0 {
		add("duplicate player ids %v", dup)
	}
	if len(s.Players) > 0 {
		if s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.Players) {
			add("currentPlayerIndex %d out of range", s.CurrentPlayerIndex)
		}
		turns := lo.CountBy(s.Players, func(p Player) bool { return p.IsCurrentTurn })
		if turns != 1 {
			add("%d players hold the turn, want exactly 1", turns)
		} else if cur, ok := s.CurrentPlayer(); ok && !cur.IsCurrentTurn {
			add("turn flag is not on players[currentPlayerIndex]")
		}
	}
	for _, id := range s.ConnectedPlayers {
		if !slices.Contains(ids, id) {
			add("connected player %q is not a member", id)
		}
	}
	if s.Phase != PhaseLobby && s.StartedByID == "" {
		add("startedById is empty outside the lobby")
	}
	if s.Phase == PhaseComplete && !IsComplete(s) {
		add("phase is complete but the sentence does not satisfy the win condition")
	}

	if len(problems) > 0 {
		return &ValidationError{GameID: s.GameID, Problems: problems}
	}
	return nil
}
