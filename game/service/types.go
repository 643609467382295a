package service

import (
	"time"

	"github.com/wricardo/cheese-pants/game/engine"
)

// GameInfo is the list view of one game
type GameInfo struct {
	ID               string       `json:"id"`
	Phase            engine.Phase `json:"phase"`
	Players          []string     `json:"players"`
	ConnectedPlayers int          `json:"connected_players"`
	WordCount        int          `json:"word_count"`
	RequiredWords    []string     `json:"required_words"`
	RequiredMatched  int          `json:"required_matched"`
	CurrentPlayer    string       `json:"current_player,omitempty"`
	TurnTimeLimit    int          `json:"turn_time_limit"`
	StartedAt        time.Time    `json:"started_at"`
	EndedAt          *time.Time   `json:"ended_at,omitempty"`
	Sentence         string       `json:"sentence"`
	Live             bool         `json:"live"`
}

// ListOptions configures game listing
type ListOptions struct {
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Order string       `json:"order"` // "asc" or "desc" by start time
	Phase engine.Phase `json:"phase,omitempty"`
}

// ListResponse contains a page of games
type ListResponse struct {
	Games       []*GameInfo `json:"games"`
	TotalGames  int         `json:"total_games"`
	Page        int         `json:"page"`
	PageSize    int         `json:"page_size"`
	TotalPages  int         `json:"total_pages"`
	HasNext     bool        `json:"has_next"`
	HasPrevious bool        `json:"has_previous"`
}

// ServerStats is a point-in-time view of server load
type ServerStats struct {
	ActiveRooms     int `json:"active_rooms"`
	StoredGames     int `json:"stored_games"`
	OpenConnections int `json:"open_connections"`
}

// Rules describes how the game is played, for clients and agents
type Rules struct {
	Summary      string   `json:"summary"`
	Rules        []string `json:"rules"`
	Messages     []string `json:"messages"`
	DefaultWords []string `json:"default_required_words"`
}
