package engine

import "time"

// Phase is the lifecycle stage of a room
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhasePlaying  Phase = "playing"
	PhaseComplete Phase = "complete"

	// MinRequiredWords is the smallest required-word set a room accepts
	MinRequiredWords = 2
)

// DefaultRequiredWords replaces a required-word list with fewer than
// MinRequiredWords usable entries.
var DefaultRequiredWords = []string{"cheese", "pants"}

// Player represents one seat in the turn rotation
type Player struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	IsCurrentTurn bool   `json:"isCurrentTurn"`
}

// WordInfo represents a single word of the sentence
type WordInfo struct {
	Text       string    `json:"text"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	AddedAt    time.Time `json:"addedAt"`
	IsRequired bool      `json:"isRequired"`

	// MatchedRequiredWordIndex is the required-word slot this word satisfied.
	MatchedRequiredWordIndex *int `json:"matchedRequiredWordIndex,omitempty"`
}

// GameState represents the complete state of one room
type GameState struct {
	GameID             string     `json:"gameId"`
	Players            []Player   `json:"players"`
	ConnectedPlayers   []string   `json:"connectedPlayers"`
	Words              []WordInfo `json:"words"`
	StartedAt          time.Time  `json:"startedAt"`
	EndedAt            *time.Time `json:"endedAt"`
	StartedByID        string     `json:"startedById"`
	RequiredWords      []string   `json:"requiredWords"`
	HasRequiredWords   []bool     `json:"hasRequiredWords"`
	CurrentPlayerIndex int        `json:"currentPlayerIndex"`
	Phase              Phase      `json:"phase"`
	TurnTimeLimit      int        `json:"turnTimeLimit"`
	LastTurnStartTime  *time.Time `json:"lastTurnStartTime"`
}

// Options configures a newly created room
type Options struct {
	RequiredWords []string
	TurnTimeLimit int
}

// JoinResult describes what a join did to the room
type JoinResult struct {
	Player      Player
	Reconnected bool
	Changed     bool
}

// AddWordResult describes the outcome of an accepted word
type AddWordResult struct {
	Word             WordInfo
	Completed        bool
	NeedsPunctuation bool
	NextPlayer       Player
}

// TurnTimeout describes a forced turn advance
type TurnTimeout struct {
	TimedOut   Player
	NextPlayer Player
}

// Clone returns a deep copy of the state
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}
	c := *s
	c.Players = append([]Player(nil), s.Players...)
	c.ConnectedPlayers = append([]string(nil), s.ConnectedPlayers...)
	c.RequiredWords = append([]string(nil), s.RequiredWords...)
	c.HasRequiredWords = append([]bool(nil), s.HasRequiredWords...)
	c.Words = make([]WordInfo, len(s.Words))
	for i, w := range s.Words {
		if w.MatchedRequiredWordIndex != nil {
			idx := *w.MatchedRequiredWordIndex
			w.MatchedRequiredWordIndex = &idx
		}
		c.Words[i] = w
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	if s.LastTurnStartTime != nil {
		t := *s.LastTurnStartTime
		c.LastTurnStartTime = &t
	}
	return &c
}

// Sentence returns the literal text of every word in order
func (s *GameState) Sentence() []string {
	out := make([]string, len(s.Words))
	for i, w := range s.Words {
		out[i] = w.Text
	}
	return out
}

// CurrentPlayer returns the player holding the turn
func (s *GameState) CurrentPlayer() (Player, bool) {
	if s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.Players) {
		return Player{}, false
	}
	return s.Players[s.CurrentPlayerIndex], true
}
