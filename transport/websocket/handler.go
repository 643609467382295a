package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/wricardo/cheese-pants/game/engine"
	"github.com/wricardo/cheese-pants/game/protocol"
	"github.com/wricardo/cheese-pants/game/session"
)

const (
	msgTooFast    = "You're sending messages too fast. Slow down a little."
	msgBadMessage = "That message could not be understood."

	disconnectTimeout = 5 * time.Second
)

// ErrMissingParam is returned for a handshake without a required parameter
var ErrMissingParam = errors.New("missing required parameter")

// ConnParams are the query parameters a client connects with
type ConnParams struct {
	GameID        string
	PlayerID      string
	PlayerName    string
	RequiredWords []string
	TurnTimeLimit int
}

// ParseConnParams validates the handshake query. requiredWords and
// turnTimeLimit only matter when the connection creates the room.
func ParseConnParams(q url.Values) (ConnParams, error) {
	p := ConnParams{
		GameID:     strings.TrimSpace(q.Get("gameId")),
		PlayerID:   strings.TrimSpace(q.Get("playerId")),
		PlayerName: strings.TrimSpace(q.Get("playerName")),
	}
	if p.GameID == "" {
		return p, fmt.Errorf("%w: gameId", ErrMissingParam)
	}
	if p.PlayerID == "" {
		return p, fmt.Errorf("%w: playerId", ErrMissingParam)
	}

	p.RequiredWords = engine.ParseRequiredWords(q.Get("requiredWords"))

	if raw := strings.TrimSpace(q.Get("turnTimeLimit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, fmt.Errorf("invalid turnTimeLimit %q", raw)
		}
		p.TurnTimeLimit = max(0, n)
	}
	return p, nil
}

// HandlerOptions configures connection handling
type HandlerOptions struct {
	// RateLimit is the sustained number of inbound messages per second
	// allowed on one connection. Zero disables limiting.
	RateLimit float64
	Burst     int

	// MaxMessageSize caps an inbound frame in bytes
	MaxMessageSize int64

	Logger  zerolog.Logger
	Metrics *session.Metrics
}

// Handler upgrades player connections and feeds their messages to rooms
type Handler struct {
	hub      *Hub
	rooms    *session.Manager
	opts     HandlerOptions
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates the /ws handler
func NewHandler(hub *Hub, rooms *session.Manager, opts HandlerOptions) *Handler {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 4096
	}
	if opts.Burst <= 0 {
		opts.Burst = 10
	}
	return &Handler{
		hub:   hub,
		rooms: rooms,
		opts:  opts,
		log:   opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Player identity is client-supplied; origins are not restricted.
				return true
			},
		},
	}
}

// ServeHTTP rejects malformed handshakes with 400 before upgrading
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params, err := ParseConnParams(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}

	// Membership is read without opening the room, so a rejected handshake
	// never creates one.
	if params.PlayerName == "" {
		member, err := h.isMember(r.Context(), params.GameID, params.PlayerID)
		if err != nil {
			h.log.Error().Err(err).Str("game_id", params.GameID).Msg("failed to read game")
			http.Error(w, "failed to open game", http.StatusServiceUnavailable)
			return
		}
		if !member {
			http.Error(w, fmt.Sprintf("%v: playerName", ErrMissingParam), http.StatusBadRequest)
			return
		}
	}

	room, err := h.rooms.Open(r.Context(), params.GameID, session.CreateParams{
		RequiredWords: params.RequiredWords,
		TurnTimeLimit: params.TurnTimeLimit,
	})
	if err != nil {
		h.log.Error().Err(err).Str("game_id", params.GameID).Msg("failed to open room")
		http.Error(w, "failed to open game", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	limit := rate.Inf
	if h.opts.RateLimit > 0 {
		limit = rate.Limit(h.opts.RateLimit)
	}
	client := &Client{
		hub:      h.hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		id:       uuid.NewString(),
		gameID:   params.GameID,
		playerID: params.PlayerID,
		limiter:  rate.NewLimiter(limit, h.opts.Burst),
	}

	if old := h.hub.register(client); old != nil {
		h.log.Info().Str("game_id", params.GameID).Str("player_id", params.PlayerID).Msg("connection replaced")
	}
	h.opts.Metrics.ConnectionOpened()

	go client.writePump()
	go h.readPump(client, room, params)
}

// isMember reports whether playerID has a seat in gameID. A game that does
// not exist yet has no members.
func (h *Handler) isMember(ctx context.Context, gameID, playerID string) (bool, error) {
	state, err := h.rooms.State(ctx, gameID)
	if errors.Is(err, session.ErrRoomNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(state.Players, func(p engine.Player) bool { return p.ID == playerID }), nil
}

// readPump pumps messages from the WebSocket connection to the room
func (h *Handler) readPump(c *Client, room *session.Room, params ConnParams) {
	log := h.log.With().Str("game_id", c.gameID).Str("player_id", c.playerID).Str("conn_id", c.id).Logger()
	ctx := context.Background()

	defer func() {
		if h.hub.unregister(c) {
			dctx, cancel := context.WithTimeout(ctx, disconnectTimeout)
			if err := room.Disconnect(dctx, c.playerID); err != nil && !errors.Is(err, session.ErrRoomClosed) {
				log.Warn().Err(err).Msg("failed to report disconnect")
			}
			cancel()
		}
		h.opts.Metrics.ConnectionClosed()
		c.kick()
	}()

	if err := room.Connect(ctx, c.playerID, params.PlayerName); err != nil {
		if !errors.Is(err, session.ErrRoomClosed) {
			log.Warn().Err(err).Msg("failed to report connect")
			return
		}
		// Evicted between Open and Connect.
		if room, err = h.reopen(ctx, c, params); err != nil {
			log.Error().Err(err).Msg("failed to reopen room")
			return
		}
	}

	c.conn.SetReadLimit(h.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if !c.limiter.Allow() {
			h.hub.sendTo(c, protocol.Message(msgTooFast))
			continue
		}

		msg, err := protocol.DecodeInbound(data)
		if err != nil {
			log.Debug().Err(err).Msg("bad message")
			h.hub.sendTo(c, protocol.Message(msgBadMessage))
			continue
		}

		if err := room.Submit(ctx, c.playerID, msg); err != nil {
			if !errors.Is(err, session.ErrRoomClosed) {
				log.Error().Err(err).Msg("failed to submit message")
				return
			}
			// The room was evicted under us; reopen it and carry on.
			room, err = h.reopen(ctx, c, params)
			if err != nil {
				log.Error().Err(err).Msg("failed to reopen room")
				return
			}
			if err := room.Submit(ctx, c.playerID, msg); err != nil {
				log.Error().Err(err).Msg("failed to submit message")
				return
			}
		}
	}
}

func (h *Handler) reopen(ctx context.Context, c *Client, params ConnParams) (*session.Room, error) {
	room, err := h.rooms.Open(ctx, c.gameID, session.CreateParams{
		RequiredWords: params.RequiredWords,
		TurnTimeLimit: params.TurnTimeLimit,
	})
	if err != nil {
		return nil, err
	}
	if err := room.Connect(ctx, c.playerID, params.PlayerName); err != nil {
		return nil, err
	}
	return room, nil
}
