package engine

import (
	"time"

	"github.com/samber/lo"
)

// advanceTurn passes the turn to the next player in join order. The timer
// baseline only moves when a turn limit is active.
func advanceTurn(s *GameState, now time.Time) {
	if len(s.Players) == 0 {
		return
	}
	clampTurnIndex(s)
	s.Players[s.CurrentPlayerIndex].IsCurrentTurn = false
	s.CurrentPlayerIndex = (s.CurrentPlayerIndex + 1) % len(s.Players)
	s.Players[s.CurrentPlayerIndex].IsCurrentTurn = true

	if s.TurnTimeLimit > 0 {
		s.LastTurnStartTime = lo.ToPtr(now)
	}
}

// setTurn gives the turn to the player at index, clearing every other flag
func setTurn(s *GameState, index int) {
	for i := range s.Players {
		s.Players[i].IsCurrentTurn = i == index
	}
	s.CurrentPlayerIndex = index
}

// resetTurnTimer restarts the countdown when a limit is set and clears the
// baseline when it is not.
func resetTurnTimer(s *GameState, now time.Time) {
	if s.TurnTimeLimit > 0 {
		s.LastTurnStartTime = lo.ToPtr(now)
		return
	}
	s.LastTurnStartTime = nil
}

// clampTurnIndex keeps CurrentPlayerIndex inside the player list and makes
// the flags agree with it.
func clampTurnIndex(s *GameState) {
	if len(s.Players) == 0 {
		s.CurrentPlayerIndex = 0
		return
	}
	if s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.Players) {
		s.CurrentPlayerIndex = 0
	}
	setTurn(s, s.CurrentPlayerIndex)
}

// TurnDeadline returns when the active turn expires, if a limit applies
func TurnDeadline(s *GameState) (time.Time, bool) {
	if s.Phase != PhasePlaying || s.TurnTimeLimit <= 0 || s.LastTurnStartTime == nil || len(s.Players) == 0 {
		return time.Time{}, false
	}
	return s.LastTurnStartTime.Add(time.Duration(s.TurnTimeLimit) * time.Second), true
}
