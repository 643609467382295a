package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/wricardo/cheese-pants/game/engine"
	"github.com/wricardo/cheese-pants/game/protocol"
)

const (
	defaultInboxSize = 64
	persistTimeout   = 5 * time.Second

	// timeoutRetryDelay spaces proactive retries of a timeout that could
	// not be saved.
	timeoutRetryDelay = time.Second

	msgTimeUp          = "Your time is up! Your turn has been skipped."
	msgAddPunctuation  = "All required words are in! End the sentence with '.', '!' or '?' to win."
	msgRemovedYou      = "You have been removed from the game."
	msgSomethingBroken = "Something went wrong saving the game. Please try again."
)

// ErrRoomClosed is returned when submitting to a room whose actor stopped
var ErrRoomClosed = errors.New("room is closed")

// Notifier delivers outbound frames to the connections of a room
type Notifier interface {
	// Broadcast sends msg to every connection in the game except
	// excludePlayerID, which may be empty.
	Broadcast(gameID string, msg protocol.Outbound, excludePlayerID string)

	// Send delivers msg to one player's connection
	Send(gameID, playerID string, msg protocol.Outbound)

	// Disconnect closes a player's connection after flushing queued frames
	Disconnect(gameID, playerID string)
}

// RoomOptions configures room actors
type RoomOptions struct {
	Clock             func() time.Time
	Logger            zerolog.Logger
	Metrics           *Metrics
	ProactiveTimeouts bool
	InboxSize         int
}

type eventKind int

const (
	evMessage eventKind = iota
	evConnect
	evDisconnect
	evSnapshot
)

type event struct {
	kind     eventKind
	playerID string
	name     string
	msg      protocol.Inbound
	reply    chan *engine.GameState
}

// Room owns one game's state. Every event is handled on the Run goroutine,
// one at a time in arrival order.
type Room struct {
	id      string
	engine  *engine.GameEngine
	store   Persistence
	notify  Notifier
	log     zerolog.Logger
	metrics *Metrics
	now     func() time.Time

	proactive bool
	inbox     chan event
	quit      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once

	// owned by the Run goroutine
	online  map[string]bool
	names   map[string]string
	retryAt time.Time

	// read by the manager for eviction
	onlineCount atomic.Int32
	lastActive  atomic.Int64
}

// NewRoom creates a room actor around eng. Call Run to start it.
func NewRoom(eng *engine.GameEngine, store Persistence, notify Notifier, opts RoomOptions) *Room {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = defaultInboxSize
	}
	id := eng.State().GameID
	r := &Room{
		id:        id,
		engine:    eng,
		store:     store,
		notify:    notify,
		log:       opts.Logger.With().Str("game_id", id).Logger(),
		metrics:   opts.Metrics,
		now:       opts.Clock,
		proactive: opts.ProactiveTimeouts,
		inbox:     make(chan event, opts.InboxSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		online:    make(map[string]bool),
		names:     make(map[string]string),
	}
	r.touch()
	return r
}

// ID returns the game ID
func (r *Room) ID() string { return r.id }

// Done is closed once the actor has stopped
func (r *Room) Done() <-chan struct{} { return r.done }

// Stop asks the actor to exit after the event in progress
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
}

// Run processes events until ctx is cancelled or Stop is called
func (r *Room) Run(ctx context.Context) {
	defer close(r.done)
	r.metrics.roomStarted()
	defer r.metrics.roomStopped()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		var wake <-chan time.Time
		if timer != nil {
			timer.Stop()
			timer = nil
		}
		if r.proactive {
			if deadline, ok := engine.TurnDeadline(r.engine.State()); ok {
				if r.retryAt.After(deadline) {
					deadline = r.retryAt
				}
				timer = time.NewTimer(max(deadline.Sub(r.now()), 0))
				wake = timer.C
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-r.quit:
			return
		case ev := <-r.inbox:
			r.handle(ctx, ev)
		case <-wake:
			r.checkTimeout(ctx)
		}
	}
}

func (r *Room) submit(ctx context.Context, ev event) error {
	select {
	case <-r.quit:
		return ErrRoomClosed
	case <-r.done:
		return ErrRoomClosed
	default:
	}

	select {
	case r.inbox <- ev:
		return nil
	case <-r.done:
		return ErrRoomClosed
	case <-r.quit:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues an inbound message from playerID's connection. The
// connection's player ID is authoritative for who is acting.
func (r *Room) Submit(ctx context.Context, playerID string, msg protocol.Inbound) error {
	return r.submit(ctx, event{kind: evMessage, playerID: playerID, msg: msg})
}

// Connect reports a newly opened connection. name is the display name the
// connection was opened with and is used if the player joins without one.
func (r *Room) Connect(ctx context.Context, playerID, name string) error {
	return r.submit(ctx, event{kind: evConnect, playerID: playerID, name: name})
}

// Disconnect reports that playerID has no open connection left
func (r *Room) Disconnect(ctx context.Context, playerID string) error {
	return r.submit(ctx, event{kind: evDisconnect, playerID: playerID})
}

// Snapshot returns a copy of the current state
func (r *Room) Snapshot(ctx context.Context) (*engine.GameState, error) {
	reply := make(chan *engine.GameState, 1)
	if err := r.submit(ctx, event{kind: evSnapshot, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-r.done:
		return nil, ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Idle reports whether the room has had no connections for at least d
func (r *Room) Idle(d time.Duration) bool {
	if r.onlineCount.Load() > 0 {
		return false
	}
	last := time.Unix(0, r.lastActive.Load())
	return r.now().Sub(last) >= d
}

func (r *Room) touch() {
	r.lastActive.Store(r.now().UnixNano())
}

func (r *Room) handle(ctx context.Context, ev event) {
	defer r.touch()

	switch ev.kind {
	case evSnapshot:
		ev.reply <- r.engine.Snapshot()
	case evConnect:
		r.checkTimeout(ctx)
		r.handleConnect(ctx, ev.playerID, ev.name)
	case evDisconnect:
		r.handleDisconnect(ctx, ev.playerID)
	case evMessage:
		r.metrics.message(ev.msg.Kind())
		r.checkTimeout(ctx)
		r.dispatch(ctx, ev.playerID, ev.msg)
	}
}

func (r *Room) dispatch(ctx context.Context, playerID string, msg protocol.Inbound) {
	switch m := msg.(type) {
	case protocol.Join:
		r.handleJoin(ctx, playerID, m)
	case protocol.GetGameState:
		r.sendState(playerID)
	case protocol.StartGame:
		r.handleStart(ctx, playerID)
	case protocol.AddWord:
		r.handleAddWord(ctx, playerID, m)
	case protocol.DeleteWord:
		r.handleDeleteWord(ctx, playerID, m)
	case protocol.ChangeTurn:
		r.handleChangeTurn(ctx, playerID, m)
	case protocol.UpdateTurnTimeLimit:
		r.handleUpdateTurnTimeLimit(ctx, playerID, m)
	case protocol.RemovePlayer:
		r.handleRemovePlayer(ctx, playerID, m)
	case protocol.TestConnection:
		r.handleTestConnection(ctx, playerID)
	case protocol.Relay:
		r.notify.Broadcast(r.id, protocol.Forward(m), playerID)
	default:
		r.log.Warn().Str("player_id", playerID).Str("type", string(msg.Kind())).Msg("unhandled message")
	}
}

// apply runs a state change. fn reports whether it changed anything worth
// storing. A rule violation is relayed to the player; a storage failure
// rolls the state back. It returns true when the change is durable.
func (r *Room) apply(ctx context.Context, playerID string, fn func() (bool, error)) bool {
	snap := r.engine.Snapshot()
	changed, err := fn()
	if err != nil {
		r.engine.Restore(snap)
		if text, ok := engine.AdvisoryText(err); ok {
			r.metrics.advisory(err)
			r.log.Debug().Str("player_id", playerID).Err(err).Msg("action rejected")
			r.notify.Send(r.id, playerID, protocol.Message(sentenceCase(text)))
			return false
		}
		r.log.Error().Str("player_id", playerID).Err(err).Msg("action failed")
		r.notify.Send(r.id, playerID, protocol.Message(msgSomethingBroken))
		return false
	}
	if !changed {
		return true
	}
	if err := r.persist(ctx); err != nil {
		r.engine.Restore(snap)
		r.notify.Send(r.id, playerID, protocol.Message(msgSomethingBroken))
		return false
	}
	return true
}

func (r *Room) persist(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := r.store.Save(ctx, r.engine.State()); err != nil {
		r.metrics.persistError()
		r.log.Error().Err(err).Msg("failed to persist game")
		return fmt.Errorf("persist game %s: %w", r.id, err)
	}
	return nil
}

func (r *Room) sendState(playerID string) {
	r.notify.Send(r.id, playerID, protocol.StateResponse(r.engine.State()))
}

func (r *Room) broadcastState() {
	r.notify.Broadcast(r.id, protocol.StateResponse(r.engine.State()), "")
}

// checkTimeout skips the active turn when its limit has run out. It runs
// before every event so a late turn is settled before the event is read.
// A skip that cannot be saved is undone and the proactive timer waits
// timeoutRetryDelay before trying again.
func (r *Room) checkTimeout(ctx context.Context) {
	snap := r.engine.Snapshot()
	to, ok := r.engine.CheckTimeout()
	if !ok {
		return
	}
	if err := r.persist(ctx); err != nil {
		r.engine.Restore(snap)
		r.retryAt = r.now().Add(timeoutRetryDelay)
		return
	}
	r.retryAt = time.Time{}
	r.metrics.timeout()
	r.log.Info().
		Str("timed_out", to.TimedOut.ID).
		Str("next", to.NextPlayer.ID).
		Msg("turn timed out")

	r.notify.Send(r.id, to.TimedOut.ID, protocol.Message(msgTimeUp))
	r.notify.Broadcast(r.id, protocol.Message(
		fmt.Sprintf("%s's time ran out. It's now %s's turn.", to.TimedOut.Name, to.NextPlayer.Name),
	), to.TimedOut.ID)
	r.broadcastState()
}

func (r *Room) handleConnect(ctx context.Context, playerID, name string) {
	r.online[playerID] = true
	r.onlineCount.Store(int32(len(r.online)))
	if name != "" {
		r.names[playerID] = name
	}

	var changed bool
	if !r.apply(ctx, playerID, func() (bool, error) {
		changed = r.engine.Connect(playerID)
		return changed, nil
	}) {
		return
	}
	r.log.Debug().Str("player_id", playerID).Bool("member_reconnected", changed).Msg("connection opened")
	if changed {
		r.broadcastState()
		return
	}
	r.sendState(playerID)
}

func (r *Room) handleDisconnect(ctx context.Context, playerID string) {
	delete(r.online, playerID)
	r.onlineCount.Store(int32(len(r.online)))

	var changed bool
	if !r.apply(ctx, playerID, func() (bool, error) {
		changed = r.engine.Disconnect(playerID)
		return changed, nil
	}) {
		return
	}
	r.log.Debug().Str("player_id", playerID).Msg("connection closed")
	if changed {
		r.broadcastState()
	}
}

func (r *Room) handleJoin(ctx context.Context, playerID string, m protocol.Join) {
	name := strings.TrimSpace(m.PlayerName)
	if name == "" {
		name = r.names[playerID]
	}

	var res engine.JoinResult
	if !r.apply(ctx, playerID, func() (bool, error) {
		var err error
		res, err = r.engine.Join(playerID, name)
		return res.Changed, err
	}) {
		return
	}

	if !res.Reconnected {
		r.log.Info().Str("player_id", playerID).Str("name", res.Player.Name).Msg("player joined")
	}
	if res.Changed {
		r.broadcastState()
		return
	}
	r.sendState(playerID)
}

func (r *Room) handleStart(ctx context.Context, playerID string) {
	if !r.apply(ctx, playerID, func() (bool, error) {
		return true, r.engine.Start(playerID)
	}) {
		return
	}
	r.log.Info().Str("player_id", playerID).Int("players", len(r.engine.State().Players)).Msg("game started")
	r.broadcastState()
}

func (r *Room) handleAddWord(ctx context.Context, playerID string, m protocol.AddWord) {
	var res engine.AddWordResult
	if !r.apply(ctx, playerID, func() (bool, error) {
		var err error
		res, err = r.engine.AddWord(playerID, m.Word)
		return true, err
	}) {
		return
	}
	r.metrics.wordAdded(res.Completed)

	r.broadcastState()
	switch {
	case res.Completed:
		r.log.Info().Int("words", len(r.engine.State().Words)).Msg("game complete")
		r.notify.Broadcast(r.id, protocol.GameComplete(r.engine.State().Sentence()), "")
	case res.NeedsPunctuation:
		r.notify.Send(r.id, playerID, protocol.Message(msgAddPunctuation))
	}
}

func (r *Room) handleDeleteWord(ctx context.Context, playerID string, m protocol.DeleteWord) {
	var removed engine.WordInfo
	if !r.apply(ctx, playerID, func() (bool, error) {
		var err error
		removed, err = r.engine.DeleteWord(playerID, m.Index)
		return true, err
	}) {
		return
	}
	r.log.Debug().Int("index", m.Index).Str("word", removed.Text).Msg("word deleted")
	r.broadcastState()
}

func (r *Room) handleChangeTurn(ctx context.Context, playerID string, m protocol.ChangeTurn) {
	if !r.apply(ctx, playerID, func() (bool, error) {
		return true, r.engine.ChangeTurn(playerID, m.NewCurrentPlayerID)
	}) {
		return
	}
	r.broadcastState()
}

func (r *Room) handleUpdateTurnTimeLimit(ctx context.Context, playerID string, m protocol.UpdateTurnTimeLimit) {
	var limit int
	if !r.apply(ctx, playerID, func() (bool, error) {
		var err error
		limit, err = r.engine.UpdateTurnTimeLimit(playerID, m.NewTimeLimit)
		return true, err
	}) {
		return
	}

	text := "Turn time limit removed."
	if limit > 0 {
		text = fmt.Sprintf("Turn time limit set to %d seconds.", limit)
	}
	r.notify.Broadcast(r.id, protocol.Message(text), "")
	r.broadcastState()
}

func (r *Room) handleRemovePlayer(ctx context.Context, playerID string, m protocol.RemovePlayer) {
	var removed engine.Player
	if !r.apply(ctx, playerID, func() (bool, error) {
		var err error
		removed, err = r.engine.RemovePlayer(playerID, m.PlayerIDToRemove)
		return true, err
	}) {
		return
	}
	r.log.Info().Str("player_id", removed.ID).Str("by", playerID).Msg("player removed")

	r.notify.Broadcast(r.id, protocol.Message(fmt.Sprintf("%s has been removed from the game.", removed.Name)), removed.ID)
	r.notify.Broadcast(r.id, protocol.StateResponse(r.engine.State()), removed.ID)
	r.notify.Send(r.id, removed.ID, protocol.Message(msgRemovedYou))
	r.notify.Send(r.id, removed.ID, protocol.Quit(r.id))
	r.notify.Disconnect(r.id, removed.ID)
}

func (r *Room) handleTestConnection(ctx context.Context, playerID string) {
	var changed bool
	if r.apply(ctx, playerID, func() (bool, error) {
		changed = r.engine.Connect(playerID)
		return changed, nil
	}) {
		if changed {
			r.broadcastState()
		} else {
			r.sendState(playerID)
		}
	}
	r.notify.Send(r.id, playerID, protocol.Pong())
}

func sentenceCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes) + "."
}
