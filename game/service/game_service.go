package service

import (
	"context"

	"github.com/wricardo/cheese-pants/game/engine"
)

// GameService defines the read-side game operations shared by the REST API
// and the MCP tools. Play happens over WebSocket; nothing here mutates a room.
type GameService interface {
	// Games
	ListGames(ctx context.Context, opts ListOptions) (*ListResponse, error)
	GetGame(ctx context.Context, gameID string) (*GameInfo, error)
	GetGameState(ctx context.Context, gameID string) (*engine.GameState, error)
	GetSummary(ctx context.Context, gameID string) (*engine.Summary, error)

	// Server
	Stats(ctx context.Context) (*ServerStats, error)
	Rules() *Rules
}

// RoomReader is the part of the room manager the service reads from
type RoomReader interface {
	State(ctx context.Context, gameID string) (*engine.GameState, error)
	List() []string
	Count() int
}

// GameLister enumerates stored games
type GameLister interface {
	ListAll(ctx context.Context) ([]string, error)
}

// ConnectionCounter reports open player connections
type ConnectionCounter interface {
	ConnectionCount() int
}
