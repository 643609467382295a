package engine

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

var (
	punctuation  = regexp.MustCompile(`[.,!?;:'"()\[\]{}]`)
	sentenceEnd  = regexp.MustCompile(`[.!?]$`)
	defaultWords = DefaultRequiredWords
)

// Normalize strips punctuation and lowercases a token for comparison
func Normalize(token string) string {
	return strings.ToLower(punctuation.ReplaceAllString(token, ""))
}

// EndsSentence reports whether the raw token ends with terminal punctuation
func EndsSentence(token string) bool {
	return sentenceEnd.MatchString(token)
}

// FirstToken returns the first whitespace-delimited token of text
func FirstToken(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// MatchRequired returns the first unmatched required-word index whose
// normalized form equals the normalized token, or -1.
func MatchRequired(token string, requiredWords []string, alreadyMatched []bool) int {
	norm := Normalize(token)
	if norm == "" {
		return -1
	}
	for i, required := range requiredWords {
		if i < len(alreadyMatched) && alreadyMatched[i] {
			continue
		}
		if Normalize(required) == norm {
			return i
		}
	}
	return -1
}

// AllRequiredMatched reports whether every required-word slot is satisfied
func AllRequiredMatched(s *GameState) bool {
	if len(s.HasRequiredWords) == 0 {
		return false
	}
	return lo.EveryBy(s.HasRequiredWords, func(b bool) bool { return b })
}

// IsComplete is the win predicate: every required word matched and the last
// word ends the sentence.
func IsComplete(s *GameState) bool {
	if len(s.Words) == 0 {
		return false
	}
	return AllRequiredMatched(s) && EndsSentence(s.Words[len(s.Words)-1].Text)
}

// RecomputeRequired rebuilds HasRequiredWords and every word's match
// annotation from the words alone, scanning in order with the first match
// winning each slot.
func RecomputeRequired(s *GameState) {
	s.HasRequiredWords = make([]bool, len(s.RequiredWords))
	for i := range s.Words {
		w := &s.Words[i]
		w.IsRequired = false
		w.MatchedRequiredWordIndex = nil

		idx := MatchRequired(w.Text, s.RequiredWords, s.HasRequiredWords)
		if idx < 0 {
			continue
		}
		s.HasRequiredWords[idx] = true
		w.IsRequired = true
		w.MatchedRequiredWordIndex = lo.ToPtr(idx)
	}
}

// ParseRequiredWords cleans a comma-separated required-word list. Entries
// are trimmed and empty ones dropped; fewer than MinRequiredWords survivors
// yields the default pair.
func ParseRequiredWords(raw string) []string {
	return CleanRequiredWords(strings.Split(raw, ","))
}

// CleanRequiredWords trims and filters a required-word list, substituting the
// default pair when too few usable words remain.
func CleanRequiredWords(words []string) []string {
	cleaned := lo.FilterMap(words, func(w string, _ int) (string, bool) {
		w = strings.TrimSpace(w)
		return w, Normalize(w) != ""
	})
	if len(cleaned) < MinRequiredWords {
		return append([]string(nil), defaultWords...)
	}
	return cleaned
}
