package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/wricardo/cheese-pants/game/engine"
	"github.com/wricardo/cheese-pants/game/service"
)

// Options configures the API server. Handlers left nil are not mounted.
type Options struct {
	Service service.GameService

	// WebSocket serves /ws
	WebSocket http.Handler
	// MCP serves POST /mcp
	MCP http.Handler
	// Metrics serves /metrics
	Metrics http.Handler

	Version string
	Logger  zerolog.Logger
}

// Server represents the REST API server
type Server struct {
	service service.GameService
	opts    Options
	log     zerolog.Logger
	router  *mux.Router
	started time.Time
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	s := &Server{
		service: opts.Service,
		opts:    opts,
		log:     opts.Logger,
		router:  mux.NewRouter(),
		started: time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("", s.handleIndex).Methods("GET")
	api.HandleFunc("/", s.handleIndex).Methods("GET")

	// Games
	api.HandleFunc("/games", s.handleListGames).Methods("GET")
	api.HandleFunc("/games/{id}", s.handleGetGame).Methods("GET")
	api.HandleFunc("/games/{id}/state", s.handleGetGameState).Methods("GET")
	api.HandleFunc("/games/{id}/summary", s.handleGetSummary).Methods("GET")

	// Server
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/rules", s.handleRules).Methods("GET")

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/version", s.handleVersion).Methods("GET")

	if s.opts.Metrics != nil {
		s.router.Handle("/metrics", s.opts.Metrics).Methods("GET")
	}
	if s.opts.WebSocket != nil {
		s.router.Handle("/ws", s.opts.WebSocket)
	}
	if s.opts.MCP != nil {
		s.router.Handle("/mcp", s.opts.MCP).Methods("POST")
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// logRequests logs each request after it is served. The ResponseWriter is
// passed through untouched so /ws can still hijack it.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors to HTTP status codes
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrGameNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidOptions):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "cheese-pants",
		"version": s.opts.Version,
		"endpoints": []string{
			"GET /api/games?page=&limit=&order=asc|desc&phase=lobby|playing|complete",
			"GET /api/games/{id}",
			"GET /api/games/{id}/state",
			"GET /api/games/{id}/summary",
			"GET /api/stats",
			"GET /api/rules",
			"GET /ws?gameId=&playerId=&playerName=&requiredWords=&turnTimeLimit=",
		},
	})
}

// Game Handlers

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	opts := service.ListOptions{
		Order: query.Get("order"),
		Phase: engine.Phase(query.Get("phase")),
	}
	for name, dst := range map[string]*int{"page": &opts.Page, "limit": &opts.Limit} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a non-negative integer", name))
			return
		}
		*dst = n
	}

	resp, err := s.service.ListGames(r.Context(), opts)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetGame(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleGetGameState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetGameState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.GetSummary(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// Server Handlers

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.service.Rules())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"version": s.opts.Version})
}
