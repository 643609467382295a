package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/wricardo/cheese-pants/game/engine"
)

// ErrRoomNotFound is returned when a room is neither running nor stored
var ErrRoomNotFound = errors.New("room not found")

// CreateParams configures a room the first time it is opened. They are
// ignored when the room already exists.
type CreateParams struct {
	RequiredWords []string
	TurnTimeLimit int
}

// Manager keeps one running Room per active game
type Manager struct {
	rooms       map[string]*Room
	persistence Persistence
	notify      Notifier
	opts        RoomOptions
	log         zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	opening singleflight.Group
}

// NewManager creates a room manager. Room actors run until ctx is
// cancelled, Close is called, or they are evicted.
func NewManager(ctx context.Context, persistence Persistence, notify Notifier, opts RoomOptions) *Manager {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Manager{
		rooms:       make(map[string]*Room),
		persistence: persistence,
		notify:      notify,
		opts:        opts,
		log:         opts.Logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Open returns the running room for gameID, loading it from storage or
// creating and persisting a new lobby when none exists. Storage is read
// outside the manager lock; concurrent opens of one game share a single
// load.
func (m *Manager) Open(ctx context.Context, gameID string, params CreateParams) (*Room, error) {
	if gameID == "" {
		return nil, fmt.Errorf("game id is required")
	}
	if room, ok := m.running(gameID); ok {
		return room, nil
	}

	v, err, _ := m.opening.Do(gameID, func() (any, error) {
		if room, ok := m.running(gameID); ok {
			return room, nil
		}
		if m.ctx.Err() != nil {
			return nil, ErrRoomClosed
		}

		eng, created, err := m.loadOrCreate(ctx, gameID, params)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.ctx.Err() != nil {
			return nil, ErrRoomClosed
		}

		room := NewRoom(eng, m.persistence, m.notify, m.opts)
		m.rooms[gameID] = room
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			room.Run(m.ctx)
		}()

		m.log.Info().Str("game_id", gameID).Bool("created", created).Msg("room opened")
		return room, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Room), nil
}

// running returns the live room for gameID and marks it active, so an
// eviction pass cannot stop it before the caller uses it.
func (m *Manager) running(gameID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[gameID]
	if ok {
		room.touch()
	}
	return room, ok
}

func (m *Manager) loadOrCreate(ctx context.Context, gameID string, params CreateParams) (*engine.GameEngine, bool, error) {
	if m.persistence != nil {
		state, err := m.persistence.Load(ctx, gameID)
		switch {
		case err == nil:
			eng, err := engine.FromState(state, m.opts.Clock)
			return eng, false, err
		case !errors.Is(err, ErrGameNotFound):
			return nil, false, fmt.Errorf("failed to load game %s: %w", gameID, err)
		}
	}

	eng := engine.New(gameID, engine.Options{
		RequiredWords: params.RequiredWords,
		TurnTimeLimit: params.TurnTimeLimit,
	}, m.opts.Clock)
	if m.persistence != nil {
		if err := m.persistence.Save(ctx, eng.State()); err != nil {
			return nil, false, fmt.Errorf("failed to persist new game %s: %w", gameID, err)
		}
	}
	return eng, true, nil
}

// Get returns the running room for gameID
func (m *Manager) Get(gameID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[gameID]
	return room, ok
}

// State returns a copy of a game's state, asking the running room when there
// is one and reading storage otherwise.
func (m *Manager) State(ctx context.Context, gameID string) (*engine.GameState, error) {
	if room, ok := m.Get(gameID); ok {
		state, err := room.Snapshot(ctx)
		if !errors.Is(err, ErrRoomClosed) {
			return state, err
		}
	}
	if m.persistence == nil {
		return nil, ErrRoomNotFound
	}
	state, err := m.persistence.Load(ctx, gameID)
	if errors.Is(err, ErrGameNotFound) {
		return nil, ErrRoomNotFound
	}
	return state, err
}

// List returns the IDs of all running rooms
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of running rooms
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// EvictIdle stops rooms that have had no connection for maxIdle. Their
// records stay in storage and are reloaded on the next Open.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, room := range m.rooms {
		if !room.Idle(maxIdle) {
			continue
		}
		room.Stop()
		delete(m.rooms, id)
		evicted++
		m.log.Info().Str("game_id", id).Msg("room evicted")
	}
	return evicted
}

// RunEviction calls EvictIdle every interval until ctx is done
func (m *Manager) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	if interval <= 0 || maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.EvictIdle(maxIdle)
		}
	}
}

// Close stops every room and waits for the actors to exit
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	m.rooms = make(map[string]*Room)
	m.mu.Unlock()
}
