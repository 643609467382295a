package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/cheese-pants/game/engine"
	"github.com/wricardo/cheese-pants/game/service"
)

// MockGameService implements service.GameService for testing
type MockGameService struct {
	ListGamesFunc    func(ctx context.Context, opts service.ListOptions) (*service.ListResponse, error)
	GetGameFunc      func(ctx context.Context, gameID string) (*service.GameInfo, error)
	GetGameStateFunc func(ctx context.Context, gameID string) (*engine.GameState, error)
	GetSummaryFunc   func(ctx context.Context, gameID string) (*engine.Summary, error)
	StatsFunc        func(ctx context.Context) (*service.ServerStats, error)
}

func (m *MockGameService) ListGames(ctx context.Context, opts service.ListOptions) (*service.ListResponse, error) {
	if m.ListGamesFunc != nil {
		return m.ListGamesFunc(ctx, opts)
	}
	return &service.ListResponse{Games: []*service.GameInfo{}, Page: 1, PageSize: 20}, nil
}

func (m *MockGameService) GetGame(ctx context.Context, gameID string) (*service.GameInfo, error) {
	if m.GetGameFunc != nil {
		return m.GetGameFunc(ctx, gameID)
	}
	return &service.GameInfo{ID: gameID, Phase: engine.PhaseLobby}, nil
}

func (m *MockGameService) GetGameState(ctx context.Context, gameID string) (*engine.GameState, error) {
	if m.GetGameStateFunc != nil {
		return m.GetGameStateFunc(ctx, gameID)
	}
	return &engine.GameState{GameID: gameID, Phase: engine.PhaseLobby}, nil
}

func (m *MockGameService) GetSummary(ctx context.Context, gameID string) (*engine.Summary, error) {
	if m.GetSummaryFunc != nil {
		return m.GetSummaryFunc(ctx, gameID)
	}
	return &engine.Summary{GameID: gameID, LongestWord: "N/A"}, nil
}

func (m *MockGameService) Stats(ctx context.Context) (*service.ServerStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return &service.ServerStats{}, nil
}

func (m *MockGameService) Rules() *service.Rules {
	return &service.Rules{Summary: "take turns", DefaultWords: engine.DefaultRequiredWords}
}

func newTestServer(svc service.GameService, opts Options) *Server {
	opts.Service = svc
	opts.Logger = zerolog.Nop()
	if opts.Version == "" {
		opts.Version = "test"
	}
	return NewServer(opts)
}

func do(t *testing.T, s http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestListGamesPassesQuery(t *testing.T) {
	var got service.ListOptions
	svc := &MockGameService{
		ListGamesFunc: func(ctx context.Context, opts service.ListOptions) (*service.ListResponse, error) {
			got = opts
			return &service.ListResponse{
				Games:      []*service.GameInfo{{ID: "g1", Phase: engine.PhaseComplete}},
				TotalGames: 1,
				Page:       opts.Page,
				PageSize:   opts.Limit,
			}, nil
		},
	}
	s := newTestServer(svc, Options{})

	rr := do(t, s, "GET", "/api/games?page=2&limit=5&order=asc&phase=complete")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, service.ListOptions{Page: 2, Limit: 5, Order: "asc", Phase: engine.PhaseComplete}, got)

	resp := decode[service.ListResponse](t, rr)
	require.Len(t, resp.Games, 1)
	assert.Equal(t, "g1", resp.Games[0].ID)
}

func TestListGamesBadQuery(t *testing.T) {
	s := newTestServer(&MockGameService{}, Options{})

	for _, q := range []string{"limit=ten", "page=-1"} {
		rr := do(t, s, "GET", "/api/games?"+q)
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}

	svc := &MockGameService{
		ListGamesFunc: func(ctx context.Context, opts service.ListOptions) (*service.ListResponse, error) {
			return nil, fmt.Errorf("%w: order", service.ErrInvalidOptions)
		},
	}
	rr := do(t, newTestServer(svc, Options{}), "GET", "/api/games?order=up")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode[map[string]string](t, rr)["error"], "order")
}

func TestGameEndpoints(t *testing.T) {
	notFound := func(id string) error { return fmt.Errorf("%w: %s", service.ErrGameNotFound, id) }
	svc := &MockGameService{
		GetGameFunc: func(ctx context.Context, id string) (*service.GameInfo, error) {
			if id != "g1" {
				return nil, notFound(id)
			}
			return &service.GameInfo{ID: id, WordCount: 3}, nil
		},
		GetGameStateFunc: func(ctx context.Context, id string) (*engine.GameState, error) {
			if id != "g1" {
				return nil, notFound(id)
			}
			return &engine.GameState{GameID: id, Phase: engine.PhasePlaying, Players: []engine.Player{{ID: "a", Name: "Alice", IsCurrentTurn: true}}}, nil
		},
		GetSummaryFunc: func(ctx context.Context, id string) (*engine.Summary, error) {
			if id != "g1" {
				return nil, notFound(id)
			}
			return &engine.Summary{GameID: id, Sentence: "cheese pants.", WordCount: 2}, nil
		},
	}
	s := newTestServer(svc, Options{})

	rr := do(t, s, "GET", "/api/games/g1")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 3, decode[service.GameInfo](t, rr).WordCount)

	rr = do(t, s, "GET", "/api/games/g1/state")
	require.Equal(t, http.StatusOK, rr.Code)
	state := decode[engine.GameState](t, rr)
	assert.Equal(t, engine.PhasePlaying, state.Phase)
	assert.Equal(t, "Alice", state.Players[0].Name)

	rr = do(t, s, "GET", "/api/games/g1/summary")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "cheese pants.", decode[engine.Summary](t, rr).Sentence)

	for _, path := range []string{"/api/games/nope", "/api/games/nope/state", "/api/games/nope/summary"} {
		rr := do(t, s, "GET", path)
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
		assert.Contains(t, decode[map[string]string](t, rr)["error"], "game not found")
	}
}

func TestInternalErrors(t *testing.T) {
	svc := &MockGameService{
		StatsFunc: func(ctx context.Context) (*service.ServerStats, error) {
			return nil, errors.New("database unavailable")
		},
	}
	rr := do(t, newTestServer(svc, Options{}), "GET", "/api/stats")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestServerEndpoints(t *testing.T) {
	svc := &MockGameService{
		StatsFunc: func(ctx context.Context) (*service.ServerStats, error) {
			return &service.ServerStats{ActiveRooms: 2, StoredGames: 5, OpenConnections: 4}, nil
		},
	}
	s := newTestServer(svc, Options{Version: "1.2.3"})

	rr := do(t, s, "GET", "/api/stats")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, service.ServerStats{ActiveRooms: 2, StoredGames: 5, OpenConnections: 4}, decode[service.ServerStats](t, rr))

	rr = do(t, s, "GET", "/api/rules")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "take turns", decode[service.Rules](t, rr).Summary)

	rr = do(t, s, "GET", "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rr)["status"])

	rr = do(t, s, "GET", "/version")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1.2.3", decode[map[string]string](t, rr)["version"])

	rr = do(t, s, "GET", "/api")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1.2.3", decode[map[string]any](t, rr)["version"])
}

func TestMountedHandlers(t *testing.T) {
	mark := func(name string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, name)
		})
	}
	s := newTestServer(&MockGameService{}, Options{
		WebSocket: mark("ws"),
		MCP:       mark("mcp"),
		Metrics:   mark("metrics"),
	})

	assert.Equal(t, "ws", do(t, s, "GET", "/ws?gameId=g").Body.String())
	assert.Equal(t, "mcp", do(t, s, "POST", "/mcp").Body.String())
	assert.Equal(t, "metrics", do(t, s, "GET", "/metrics").Body.String())
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s, "GET", "/mcp").Code)
}

func TestUnmountedHandlers(t *testing.T) {
	s := newTestServer(&MockGameService{}, Options{})
	assert.Equal(t, http.StatusNotFound, do(t, s, "GET", "/ws").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, "POST", "/mcp").Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(&MockGameService{}, Options{})
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s, "DELETE", "/api/games/g1").Code)
}

func TestHealthUptime(t *testing.T) {
	s := newTestServer(&MockGameService{}, Options{})
	s.started = time.Now().Add(-90 * time.Second)
	rr := do(t, s, "GET", "/healthz")
	assert.Equal(t, "1m30s", decode[map[string]string](t, rr)["uptime"])
}
