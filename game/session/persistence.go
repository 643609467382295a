package session

import (
	"context"
	"errors"

	"github.com/wricardo/cheese-pants/game/engine"
)

// ErrGameNotFound is returned when no durable record exists for a game
var ErrGameNotFound = errors.New("game not found")

// Persistence stores one durable record per room, keyed by game ID. The
// record is the serialized GameState verbatim.
type Persistence interface {
	// Save writes the full state, replacing any previous record
	Save(ctx context.Context, state *engine.GameState) error

	// Load retrieves a stored state. It returns ErrGameNotFound when absent.
	Load(ctx context.Context, gameID string) (*engine.GameState, error)

	// Delete removes a stored record
	Delete(ctx context.Context, gameID string) error

	// ListAll returns every stored game ID
	ListAll(ctx context.Context) ([]string, error)

	// Exists reports whether a record is stored for gameID
	Exists(ctx context.Context, gameID string) (bool, error)
}

// loadRecord decodes and repairs a stored state
func loadRecord(gameID string, decode func(*engine.GameState) error) (*engine.GameState, error) {
	var state engine.GameState
	if err := decode(&state); err != nil {
		return nil, err
	}
	if state.GameID == "" {
		state.GameID = gameID
	}
	engine.Repair(&state)
	return &state, nil
}
