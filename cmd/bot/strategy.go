package main

import (
	"github.com/samber/lo"

	"github.com/wricardo/cheese-pants/game/engine"
)

// DefaultFiller is the vocabulary bots use between required words
var DefaultFiller = []string{"the", "very", "old", "purple", "dancing", "quietly", "ate", "my", "happy", "socks"}

// Strategy decides which word a bot plays on its turn. It plays filler words
// and slots in the next unmatched required word every Every words. The word
// that matches the last required word, or the first word after all are
// matched, carries a period so the sentence finishes as soon as possible.
type Strategy struct {
	Filler []string
	Every  int
}

// missingRequired lists the required words not yet matched, in order
func missingRequired(state *engine.GameState) []string {
	return lo.Filter(state.RequiredWords, func(_ string, i int) bool {
		return i >= len(state.HasRequiredWords) || !state.HasRequiredWords[i]
	})
}

func (s Strategy) filler(n int) string {
	if len(s.Filler) == 0 {
		return DefaultFiller[n%len(DefaultFiller)]
	}
	return s.Filler[n%len(s.Filler)]
}

// NextWord picks the word to play against state
func (s Strategy) NextWord(state *engine.GameState) string {
	n := len(state.Words)
	missing := missingRequired(state)
	if len(missing) == 0 {
		return s.filler(n) + "."
	}
	if s.Every <= 1 || n%s.Every == s.Every-1 {
		if len(missing) == 1 {
			return missing[0] + "."
		}
		return missing[0]
	}
	return s.filler(n)
}

// MyTurn reports whether playerID holds the turn in a game being played
func MyTurn(state *engine.GameState, playerID string) bool {
	if state.Phase != engine.PhasePlaying {
		return false
	}
	cur, ok := state.CurrentPlayer()
	return ok && cur.ID == playerID
}
