package engine

import (
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
)

// Engine provides the main interface for game operations
type Engine interface {
	// State management
	State() *GameState
	Snapshot() *GameState
	Restore(state *GameState)

	// Membership
	Join(playerID, name string) (JoinResult, error)
	Connect(playerID string) bool
	Disconnect(playerID string) bool
	RemovePlayer(actorID, targetID string) (Player, error)

	// Gameplay
	Start(actorID string) error
	AddWord(actorID, text string) (AddWordResult, error)
	DeleteWord(actorID string, index int) (WordInfo, error)
	ChangeTurn(actorID, targetID string) error

	// Turn timer
	UpdateTurnTimeLimit(actorID string, seconds int) (int, error)
	CheckTimeout() (TurnTimeout, bool)
}

// GameEngine implements the Engine interface for a single room. It is not
// safe for concurrent use; the owning room serializes access.
type GameEngine struct {
	state *GameState
	now   func() time.Time
}

// New creates a lobby for gameID. A nil clock defaults to time.Now.
func New(gameID string, opts Options, now func() time.Time) *GameEngine {
	if now == nil {
		now = time.Now
	}
	required := CleanRequiredWords(opts.RequiredWords)
	state := &GameState{
		GameID:           gameID,
		Players:          []Player{},
		ConnectedPlayers: []string{},
		Words:            []WordInfo{},
		StartedAt:        now(),
		RequiredWords:    required,
		HasRequiredWords: make([]bool, len(required)),
		Phase:            PhaseLobby,
		TurnTimeLimit:    max(0, opts.TurnTimeLimit),
	}
	return &GameEngine{state: state, now: now}
}

// FromState wraps a stored state, repairing fields older records lack
func FromState(state *GameState, now func() time.Time) (*GameEngine, error) {
	if state == nil {
		return nil, fmt.Errorf("state cannot be nil")
	}
	if now == nil {
		now = time.Now
	}
	Repair(state)
	return &GameEngine{state: state, now: now}, nil
}

// State returns the live game state
func (e *GameEngine) State() *GameState {
	return e.state
}

// Snapshot returns a deep copy of the current state
func (e *GameEngine) Snapshot() *GameState {
	return e.state.Clone()
}

// Restore replaces the state, typically with a Snapshot taken before a
// mutation that could not be persisted.
func (e *GameEngine) Restore(state *GameState) {
	if state != nil {
		e.state = state
	}
}

func (e *GameEngine) playerIndex(playerID string) int {
	return slices.IndexFunc(e.state.Players, func(p Player) bool { return p.ID == playerID })
}

func (e *GameEngine) isAdmin(playerID string) bool {
	return playerID != "" && playerID == e.state.StartedByID
}

// Join admits a player. A known player reconnects; Changed reports whether
// the connected set actually moved. A new player takes the turn only when
// the room was empty, and the first player ever becomes the admin.
func (e *GameEngine) Join(playerID, name string) (JoinResult, error) {
	s := e.state
	if idx := e.playerIndex(playerID); idx >= 0 {
		changed := e.Connect(playerID)
		return JoinResult{Player: s.Players[idx], Reconnected: true, Changed: changed}, nil
	}
	if s.Phase == PhaseComplete {
		return JoinResult{}, ErrGameComplete
	}
	if name == "" {
		return JoinResult{}, ErrNameRequired
	}

	p := Player{ID: playerID, Name: name, IsCurrentTurn: len(s.Players) == 0}
	if p.IsCurrentTurn {
		s.CurrentPlayerIndex = 0
	}
	s.Players = append(s.Players, p)
	if !slices.Contains(s.ConnectedPlayers, playerID) {
		s.ConnectedPlayers = append(s.ConnectedPlayers, playerID)
	}
	if s.StartedByID == "" {
		s.StartedByID = playerID
	}
	return JoinResult{Player: p, Changed: true}, nil
}

// Connect marks a member as holding an open connection
func (e *GameEngine) Connect(playerID string) bool {
	if e.playerIndex(playerID) < 0 || slices.Contains(e.state.ConnectedPlayers, playerID) {
		return false
	}
	e.state.ConnectedPlayers = append(e.state.ConnectedPlayers, playerID)
	return true
}

// Disconnect clears a player's connection mark. Their seat is kept.
func (e *GameEngine) Disconnect(playerID string) bool {
	if !slices.Contains(e.state.ConnectedPlayers, playerID) {
		return false
	}
	e.state.ConnectedPlayers = lo.Without(e.state.ConnectedPlayers, playerID)
	return true
}

// Start moves the room from lobby to playing
func (e *GameEngine) Start(actorID string) error {
	s := e.state
	switch {
	case s.Phase == PhaseComplete:
		return ErrGameComplete
	case s.Phase != PhaseLobby:
		return ErrAlreadyStarted
	case !e.isAdmin(actorID):
		return fmt.Errorf("start game: %w", ErrNotAdmin)
	case len(s.Players) == 0:
		return ErrNoPlayers
	}

	now := e.now()
	clampTurnIndex(s)
	s.Phase = PhasePlaying
	s.StartedAt = now
	resetTurnTimer(s, now)
	return nil
}

func (e *GameEngine) requirePlaying() error {
	switch e.state.Phase {
	case PhasePlaying:
		return nil
	case PhaseComplete:
		return ErrGameComplete
	default:
		return ErrGameNotStarted
	}
}

// AddWord appends the first token of text for the current-turn player,
// passes the turn, then evaluates the win condition.
func (e *GameEngine) AddWord(actorID, text string) (AddWordResult, error) {
	if err := e.requirePlaying(); err != nil {
		return AddWordResult{}, err
	}
	s := e.state
	current, ok := s.CurrentPlayer()
	if !ok || current.ID != actorID {
		return AddWordResult{}, ErrNotYourTurn
	}
	token := FirstToken(text)
	if token == "" {
		return AddWordResult{}, ErrEmptyWord
	}

	now := e.now()
	word := WordInfo{
		Text:       token,
		AuthorID:   current.ID,
		AuthorName: current.Name,
		AddedAt:    now,
	}
	if idx := MatchRequired(token, s.RequiredWords, s.HasRequiredWords); idx >= 0 {
		s.HasRequiredWords[idx] = true
		word.IsRequired = true
		word.MatchedRequiredWordIndex = lo.ToPtr(idx)
	}
	s.Words = append(s.Words, word)
	advanceTurn(s, now)

	result := AddWordResult{Word: word}
	result.NextPlayer, _ = s.CurrentPlayer()
	if IsComplete(s) {
		s.Phase = PhaseComplete
		s.EndedAt = lo.ToPtr(now)
		result.Completed = true
	} else if AllRequiredMatched(s) {
		result.NeedsPunctuation = true
	}
	return result, nil
}

// DeleteWord removes the word at index and rederives every required-word
// match from the remaining words.
func (e *GameEngine) DeleteWord(actorID string, index int) (WordInfo, error) {
	if err := e.requirePlaying(); err != nil {
		return WordInfo{}, err
	}
	if !e.isAdmin(actorID) {
		return WordInfo{}, fmt.Errorf("delete word: %w", ErrNotAdmin)
	}
	s := e.state
	if index < 0 || index >= len(s.Words) {
		return WordInfo{}, fmt.Errorf("delete word %d: %w", index, ErrWordIndexOutOfRange)
	}

	removed := s.Words[index]
	if removed.IsRequired && removed.MatchedRequiredWordIndex != nil {
		if slot := *removed.MatchedRequiredWordIndex; slot >= 0 && slot < len(s.HasRequiredWords) {
			s.HasRequiredWords[slot] = false
		}
	}
	s.Words = slices.Delete(s.Words, index, index+1)
	RecomputeRequired(s)
	return removed, nil
}

// ChangeTurn hands the turn to targetID. The timer baseline restarts so the
// new holder gets a full turn.
func (e *GameEngine) ChangeTurn(actorID, targetID string) error {
	if err := e.requirePlaying(); err != nil {
		return err
	}
	if !e.isAdmin(actorID) {
		return fmt.Errorf("change turn: %w", ErrNotAdmin)
	}
	idx := e.playerIndex(targetID)
	if idx < 0 {
		return fmt.Errorf("change turn to %q: %w", targetID, ErrPlayerNotFound)
	}
	setTurn(e.state, idx)
	resetTurnTimer(e.state, e.now())
	return nil
}

// UpdateTurnTimeLimit sets the per-turn limit in seconds, clamped at zero,
// and restarts or clears the timer baseline. It returns the applied limit.
func (e *GameEngine) UpdateTurnTimeLimit(actorID string, seconds int) (int, error) {
	if e.state.Phase == PhaseComplete {
		return 0, ErrGameComplete
	}
	if !e.isAdmin(actorID) {
		return 0, fmt.Errorf("update turn time limit: %w", ErrNotAdmin)
	}
	e.state.TurnTimeLimit = max(0, seconds)
	resetTurnTimer(e.state, e.now())
	return e.state.TurnTimeLimit, nil
}

// RemovePlayer drops targetID from the room, keeping the turn pointer on the
// same logical player or moving it to whoever now occupies the seat.
func (e *GameEngine) RemovePlayer(actorID, targetID string) (Player, error) {
	s := e.state
	if s.Phase == PhaseComplete {
		return Player{}, ErrGameComplete
	}
	if !e.isAdmin(actorID) {
		return Player{}, fmt.Errorf("remove player: %w", ErrNotAdmin)
	}
	idx := e.playerIndex(targetID)
	if idx < 0 {
		return Player{}, fmt.Errorf("remove player %q: %w", targetID, ErrPlayerNotFound)
	}

	removed := s.Players[idx]
	heldTurn := idx == s.CurrentPlayerIndex
	s.Players = slices.Delete(s.Players, idx, idx+1)
	s.ConnectedPlayers = lo.Without(s.ConnectedPlayers, targetID)

	switch {
	case len(s.Players) == 0:
		s.Phase = PhaseLobby
		s.CurrentPlayerIndex = 0
		s.LastTurnStartTime = nil
	case heldTurn:
		if s.CurrentPlayerIndex >= len(s.Players) {
			s.CurrentPlayerIndex = 0
		}
		setTurn(s, s.CurrentPlayerIndex)
		if s.Phase == PhasePlaying {
			resetTurnTimer(s, e.now())
		}
	case idx < s.CurrentPlayerIndex:
		s.CurrentPlayerIndex--
	}
	removed.IsCurrentTurn = false
	return removed, nil
}

// CheckTimeout forces a turn advance when the active turn has run past its
// limit. It reports false when no limit applies or time remains.
func (e *GameEngine) CheckTimeout() (TurnTimeout, bool) {
	s := e.state
	deadline, ok := TurnDeadline(s)
	if !ok {
		return TurnTimeout{}, false
	}
	now := e.now()
	if now.Before(deadline) {
		return TurnTimeout{}, false
	}
	clampTurnIndex(s)
	timedOut, _ := s.CurrentPlayer()
	advanceTurn(s, now)
	next, _ := s.CurrentPlayer()
	timedOut.IsCurrentTurn = false
	return TurnTimeout{TimedOut: timedOut, NextPlayer: next}, true
}
