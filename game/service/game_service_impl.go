package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/wricardo/cheese-pants/game/engine"
	"github.com/wricardo/cheese-pants/game/session"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var (
	// ErrGameNotFound is returned for a game that is neither running nor stored
	ErrGameNotFound = errors.New("game not found")

	// ErrInvalidOptions is returned for unusable list options
	ErrInvalidOptions = errors.New("invalid list options")
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	rooms RoomReader
	store GameLister
	conns ConnectionCounter
}

// NewGameService creates a new game service instance. store and conns may
// be nil when games are not persisted or connections are not tracked.
func NewGameService(rooms RoomReader, store GameLister, conns ConnectionCounter) GameService {
	return &gameServiceImpl{
		rooms: rooms,
		store: store,
		conns: conns,
	}
}

// ListGames returns a page of running and stored games ordered by start time
func (s *gameServiceImpl) ListGames(ctx context.Context, opts ListOptions) (*ListResponse, error) {
	opts, err := normalizeListOptions(opts)
	if err != nil {
		return nil, err
	}

	ids, err := s.allIDs(ctx)
	if err != nil {
		return nil, err
	}
	live := lo.SliceToMap(s.rooms.List(), func(id string) (string, bool) { return id, true })

	games := make([]*GameInfo, 0, len(ids))
	for _, id := range ids {
		state, err := s.rooms.State(ctx, id)
		if err != nil {
			if errors.Is(err, session.ErrRoomNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to read game %s: %w", id, err)
		}
		if opts.Phase != "" && state.Phase != opts.Phase {
			continue
		}
		games = append(games, newGameInfo(state, live[id]))
	}

	sort.SliceStable(games, func(i, j int) bool {
		a, b := games[i], games[j]
		if !a.StartedAt.Equal(b.StartedAt) {
			if opts.Order == "asc" {
				return a.StartedAt.Before(b.StartedAt)
			}
			return a.StartedAt.After(b.StartedAt)
		}
		return a.ID < b.ID
	})

	total := len(games)
	totalPages := (total + opts.Limit - 1) / opts.Limit
	start := min((opts.Page-1)*opts.Limit, total)
	end := min(start+opts.Limit, total)

	return &ListResponse{
		Games:       games[start:end],
		TotalGames:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

func normalizeListOptions(opts ListOptions) (ListOptions, error) {
	if opts.Page <= 0 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultPageSize
	}
	if opts.Limit > maxPageSize {
		opts.Limit = maxPageSize
	}

	opts.Order = strings.ToLower(strings.TrimSpace(opts.Order))
	switch opts.Order {
	case "":
		opts.Order = "desc"
	case "asc", "desc":
	default:
		return opts, fmt.Errorf("%w: order must be asc or desc, got %q", ErrInvalidOptions, opts.Order)
	}

	switch opts.Phase {
	case "", engine.PhaseLobby, engine.PhasePlaying, engine.PhaseComplete:
	default:
		return opts, fmt.Errorf("%w: unknown phase %q", ErrInvalidOptions, opts.Phase)
	}
	return opts, nil
}

func (s *gameServiceImpl) allIDs(ctx context.Context) ([]string, error) {
	ids := s.rooms.List()
	if s.store == nil {
		return ids, nil
	}
	stored, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored games: %w", err)
	}
	return lo.Union(ids, stored), nil
}

func newGameInfo(state *engine.GameState, live bool) *GameInfo {
	info := &GameInfo{
		ID:               state.GameID,
		Phase:            state.Phase,
		Players:          lo.Map(state.Players, func(p engine.Player, _ int) string { return p.Name }),
		ConnectedPlayers: len(state.ConnectedPlayers),
		WordCount:        len(state.Words),
		RequiredWords:    state.RequiredWords,
		RequiredMatched:  lo.Count(state.HasRequiredWords, true),
		TurnTimeLimit:    state.TurnTimeLimit,
		StartedAt:        state.StartedAt,
		EndedAt:          state.EndedAt,
		Sentence:         strings.Join(state.Sentence(), " "),
		Live:             live,
	}
	if state.Phase == engine.PhasePlaying {
		if p, ok := state.CurrentPlayer(); ok {
			info.CurrentPlayer = p.Name
		}
	}
	return info
}

// GetGame returns the list view of one game
func (s *gameServiceImpl) GetGame(ctx context.Context, gameID string) (*GameInfo, error) {
	state, err := s.GetGameState(ctx, gameID)
	if err != nil {
		return nil, err
	}
	_, live := lo.Find(s.rooms.List(), func(id string) bool { return id == gameID })
	return newGameInfo(state, live), nil
}

// GetGameState returns the full state of one game
func (s *gameServiceImpl) GetGameState(ctx context.Context, gameID string) (*engine.GameState, error) {
	if strings.TrimSpace(gameID) == "" {
		return nil, fmt.Errorf("%w: empty game id", ErrGameNotFound)
	}
	state, err := s.rooms.State(ctx, gameID)
	if errors.Is(err, session.ErrRoomNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read game %s: %w", gameID, err)
	}
	return state, nil
}

// GetSummary returns the end-of-game report. Unfinished games get a report
// of the sentence so far.
func (s *gameServiceImpl) GetSummary(ctx context.Context, gameID string) (*engine.Summary, error) {
	state, err := s.GetGameState(ctx, gameID)
	if err != nil {
		return nil, err
	}
	summary := engine.Summarize(state)
	return &summary, nil
}

// Stats returns current server load
func (s *gameServiceImpl) Stats(ctx context.Context) (*ServerStats, error) {
	stats := &ServerStats{ActiveRooms: s.rooms.Count()}
	if s.conns != nil {
		stats.OpenConnections = s.conns.ConnectionCount()
	}
	if s.store != nil {
		stored, err := s.store.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list stored games: %w", err)
		}
		stats.StoredGames = len(stored)
	}
	return stats, nil
}

// Rules describes the game
func (s *gameServiceImpl) Rules() *Rules {
	return &Rules{
		Summary: "Players take turns adding one word at a time to a shared sentence. " +
			"The game ends when every required word has been used and the sentence ends with . ! or ?",
		Rules: []string{
			"The first player to join a room is its host.",
			"The host starts the game once at least one player has joined.",
			"Only the player whose turn it is may add a word.",
			"A word matches a required word when they are equal ignoring case and punctuation.",
			"The host may delete any word; required-word progress is recounted.",
			"The host may also hand the turn to any player, change the turn time limit, or remove players.",
			"When the turn time limit runs out the turn passes to the next player.",
			"New players may join mid-game; they are added to the end of the rotation.",
		},
		Messages: []string{
			"join", "get-game-state", "start-game", "add-word", "delete-word",
			"change-turn", "update-turn-time-limit", "remove-player", "test-connection", "message",
		},
		DefaultWords: engine.DefaultRequiredWords,
	}
}
