package engine

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
)

const (
	wordCountWeight = 1.0
	avgLengthWeight = 0.7
)

// PlayerStats summarizes one player's contribution to the sentence
type PlayerStats struct {
	PlayerID          string  `json:"playerId"`
	Name              string  `json:"name"`
	WordsAdded        int     `json:"wordsAdded"`
	AvgWordLength     float64 `json:"avgWordLength"`
	RequiredWordsUsed int     `json:"requiredWordsUsed"`
	Score             float64 `json:"score"`
}

// Achievement is an end-of-game award
type Achievement struct {
	Title  string `json:"title"`
	Player string `json:"player"`
}

// Summary is the end-of-game report for a room
type Summary struct {
	GameID         string        `json:"gameId"`
	Phase          Phase         `json:"phase"`
	Sentence       string        `json:"sentence"`
	SentenceLength int           `json:"sentenceLength"`
	WordCount      int           `json:"wordCount"`
	LongestWord    string        `json:"longestWord"`
	Duration       string        `json:"duration,omitempty"`
	Rankings       []PlayerStats `json:"rankings"`
	Achievements   []Achievement `json:"achievements"`
}

func stripPunctuation(token string) string {
	return punctuation.ReplaceAllString(token, "")
}

func cleanLen(token string) int {
	return utf8.RuneCountInString(stripPunctuation(token))
}

// Summarize builds the report shown when a game ends. It can be called on
// unfinished games too; Duration is only set once the game has ended.
func Summarize(s *GameState) Summary {
	sum := Summary{
		GameID:         s.GameID,
		Phase:          s.Phase,
		Sentence:       strings.Join(s.Sentence(), " "),
		SentenceLength: SentenceLength(s.Words),
		WordCount:      len(s.Words),
		LongestWord:    LongestWord(s.Words),
		Rankings:       RankPlayers(s),
		Achievements:   []Achievement{},
	}
	if s.EndedAt != nil {
		sum.Duration = FormatDuration(s.EndedAt.Sub(s.StartedAt))
	}
	sum.Achievements = achievements(s, sum.Rankings)
	return sum
}

// SentenceLength counts the characters of every word plus single spaces
func SentenceLength(words []WordInfo) int {
	if len(words) == 0 {
		return 0
	}
	total := lo.SumBy(words, func(w WordInfo) int { return utf8.RuneCountInString(w.Text) })
	return total + len(words) - 1
}

// LongestWord returns the earliest word with the most letters, ignoring
// punctuation, or "N/A" for an empty sentence.
func LongestWord(words []WordInfo) string {
	w, ok := longestWordInfo(words)
	if !ok {
		return "N/A"
	}
	return w.Text
}

func longestWordInfo(words []WordInfo) (WordInfo, bool) {
	if len(words) == 0 {
		return WordInfo{}, false
	}
	best := words[0]
	for _, w := range words[1:] {
		if cleanLen(w.Text) > cleanLen(best.Text) {
			best = w
		}
	}
	return best, true
}

// RankPlayers returns per-player stats ordered by words added plus a
// weighted average word length. Ties keep join order.
func RankPlayers(s *GameState) []PlayerStats {
	stats := lo.Map(s.Players, func(p Player, _ int) PlayerStats {
		return PlayerStats{PlayerID: p.ID, Name: p.Name}
	})
	index := make(map[string]int, len(stats))
	for i, ps := range stats {
		index[ps.PlayerID] = i
	}
	totals := make([]int, len(stats))

	for _, w := range s.Words {
		i, ok := index[w.AuthorID]
		if !ok {
			continue
		}
		stats[i].WordsAdded++
		totals[i] += cleanLen(w.Text)
		if w.IsRequired {
			stats[i].RequiredWordsUsed++
		}
	}
	for i := range stats {
		if stats[i].WordsAdded > 0 {
			stats[i].AvgWordLength = float64(totals[i]) / float64(stats[i].WordsAdded)
		}
		stats[i].Score = float64(stats[i].WordsAdded)*wordCountWeight + stats[i].AvgWordLength*avgLengthWeight
	}

	slices.SortStableFunc(stats, func(a, b PlayerStats) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return stats
}

func achievements(s *GameState, ranked []PlayerStats) []Achievement {
	out := []Achievement{}
	if len(ranked) == 0 || len(s.Words) == 0 {
		return out
	}

	if top := ranked[0]; top.WordsAdded > 0 {
		out = append(out, Achievement{
			Title:  "Word Master",
			Player: fmt.Sprintf("%s (%d words)", top.Name, top.WordsAdded),
		})
	}

	vocab := lo.MaxBy(ranked, func(a, b PlayerStats) bool { return a.AvgWordLength > b.AvgWordLength })
	if vocab.AvgWordLength > 0 {
		out = append(out, Achievement{
			Title:  "Vocabulary Champion",
			Player: fmt.Sprintf("%s (avg: %.1f)", vocab.Name, vocab.AvgWordLength),
		})
	}

	objective := lo.MaxBy(ranked, func(a, b PlayerStats) bool { return a.RequiredWordsUsed > b.RequiredWordsUsed })
	if objective.RequiredWordsUsed > 0 {
		out = append(out, Achievement{
			Title:  "Objective Completer",
			Player: fmt.Sprintf("%s (%d req. words)", objective.Name, objective.RequiredWordsUsed),
		})
	}

	if longest, ok := longestWordInfo(s.Words); ok {
		out = append(out, Achievement{
			Title:  "Longest Word Award",
			Player: fmt.Sprintf("%s (%q)", longest.AuthorName, longest.Text),
		})
	}

	out = append(out, Achievement{
		Title:  "Sentence Finisher",
		Player: s.Words[len(s.Words)-1].AuthorName,
	})
	return out
}

// FormatDuration renders d as whole minutes and seconds, e.g. "2m 5s"
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d / time.Minute)
	seconds := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
