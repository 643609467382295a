package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/wricardo/cheese-pants/game/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Outbound frames buffered per connection before it is dropped as slow.
	sendBuffer = 256
)

// Client is one open connection, tagged with the game and player it
// belongs to.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	id       string
	gameID   string
	playerID string
	limiter  *rate.Limiter

	closeOnce sync.Once
}

// kick closes the socket so the read pump exits and reports the disconnect
func (c *Client) kick() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// Hub maintains the open connections of every game. Each player has at most
// one connection per game; a newer one replaces the older.
type Hub struct {
	// Registered clients by game ID, then player ID
	games map[string]map[string]*Client

	log zerolog.Logger
	mu  sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		games: make(map[string]map[string]*Client),
		log:   logger,
	}
}

// register adds a client, closing any connection it replaces. It returns
// the replaced client, if any.
func (h *Hub) register(c *Client) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	players := h.games[c.gameID]
	if players == nil {
		players = make(map[string]*Client)
		h.games[c.gameID] = players
	}
	old := players[c.playerID]
	if old != nil {
		close(old.send)
	}
	players[c.playerID] = c

	h.log.Debug().
		Str("game_id", c.gameID).
		Str("player_id", c.playerID).
		Str("conn_id", c.id).
		Int("connections", len(players)).
		Msg("client registered")
	return old
}

// unregister removes c if it is still the player's current connection. It
// reports false when c was already replaced or disconnected, in which case
// the room must not be told the player left.
func (h *Hub) unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	players, ok := h.games[c.gameID]
	if !ok || players[c.playerID] != c {
		return false
	}
	delete(players, c.playerID)
	close(c.send)
	if len(players) == 0 {
		delete(h.games, c.gameID)
	}

	h.log.Debug().
		Str("game_id", c.gameID).
		Str("player_id", c.playerID).
		Str("conn_id", c.id).
		Int("remaining", len(players)).
		Msg("client unregistered")
	return true
}

func (h *Hub) encode(gameID string, msg protocol.Outbound) ([]byte, bool) {
	data, err := protocol.Encode(msg)
	if err != nil {
		h.log.Error().Err(err).Str("game_id", gameID).Str("type", string(msg.Type)).Msg("failed to marshal message")
		return nil, false
	}
	return data, true
}

// deliver queues data without blocking. A client whose buffer is full is
// kicked. Callers hold at least the read lock.
func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.log.Warn().Str("game_id", c.gameID).Str("player_id", c.playerID).Msg("client too slow, closing")
		c.kick()
	}
}

// Broadcast sends msg to every connection of the game except
// excludePlayerID's.
func (h *Hub) Broadcast(gameID string, msg protocol.Outbound, excludePlayerID string) {
	data, ok := h.encode(gameID, msg)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for playerID, c := range h.games[gameID] {
		if excludePlayerID != "" && playerID == excludePlayerID {
			continue
		}
		h.deliver(c, data)
	}
}

// Send delivers msg to one player's connection, if open
func (h *Hub) Send(gameID, playerID string, msg protocol.Outbound) {
	data, ok := h.encode(gameID, msg)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.games[gameID][playerID]; ok {
		h.deliver(c, data)
	}
}

// sendTo delivers msg to c only while it is still registered
func (h *Hub) sendTo(c *Client, msg protocol.Outbound) {
	data, ok := h.encode(c.gameID, msg)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.games[c.gameID][c.playerID] == c {
		h.deliver(c, data)
	}
}

// Disconnect closes a player's connection once its queued frames are
// written. The room is not notified; it initiated the disconnect.
func (h *Hub) Disconnect(gameID, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	players := h.games[gameID]
	c, ok := players[playerID]
	if !ok {
		return
	}
	delete(players, playerID)
	close(c.send)
	if len(players) == 0 {
		delete(h.games, gameID)
	}
}

// Connected returns the IDs of players with an open connection to gameID
func (h *Hub) Connected(gameID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.games[gameID]))
	for id := range h.games[gameID] {
		ids = append(ids, id)
	}
	return ids
}

// ConnectionCount returns the number of open connections across all games
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, players := range h.games {
		n += len(players)
	}
	return n
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.kick()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
