package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wricardo/cheese-pants/game/engine"
	"github.com/wricardo/cheese-pants/game/protocol"
)

// Bot is one automated player holding a websocket connection
type Bot struct {
	ID   string
	Name string

	conn     *websocket.Conn
	strategy Strategy
	delay    time.Duration
	logger   zerolog.Logger
}

// GameOptions are sent in the handshake of every bot. They only take effect
// for the connection that creates the game.
type GameOptions struct {
	RequiredWords []string
	TurnTimeLimit int
}

// wsURL turns an http(s) server URL into the /ws handshake URL
func wsURL(serverURL, gameID, playerID, name string, opts GameOptions) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"

	q := url.Values{}
	q.Set("gameId", gameID)
	q.Set("playerId", playerID)
	q.Set("playerName", name)
	if len(opts.RequiredWords) > 0 {
		q.Set("requiredWords", strings.Join(opts.RequiredWords, ","))
	}
	if opts.TurnTimeLimit > 0 {
		q.Set("turnTimeLimit", strconv.Itoa(opts.TurnTimeLimit))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial connects a bot to gameID and asks to join
func Dial(ctx context.Context, serverURL, gameID, playerID, name string, opts GameOptions) (*Bot, error) {
	target, err := wsURL(serverURL, gameID, playerID, name, opts)
	if err != nil {
		return nil, err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %s)", playerID, err, resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", playerID, err)
	}

	b := &Bot{ID: playerID, Name: name, conn: conn, logger: zerolog.Nop()}
	if err := b.send(map[string]any{"type": protocol.TypeJoin, "playerName": name}); err != nil {
		conn.Close()
		return nil, err
	}
	return b, nil
}

// Close drops the connection
func (b *Bot) Close() error {
	return b.conn.Close()
}

func (b *Bot) send(frame any) error {
	if err := b.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("%s: write: %w", b.ID, err)
	}
	return nil
}

// read returns the next frame the bot can decode. Relayed chat with a
// non-string payload is skipped.
func (b *Bot) read() (protocol.Outbound, error) {
	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			return protocol.Outbound{}, fmt.Errorf("%s: read: %w", b.ID, err)
		}
		var msg protocol.Outbound
		if err := json.Unmarshal(data, &msg); err != nil {
			b.logger.Debug().Str("frame", string(data)).Msg("Skipping undecodable frame")
			continue
		}
		return msg, nil
	}
}

// Play runs the bot until the game completes, returning the sentence. When
// startWith is positive the bot starts the game once that many players have
// joined.
func (b *Bot) Play(ctx context.Context, startWith int) ([]string, error) {
	stop := context.AfterFunc(ctx, func() { b.conn.Close() })
	defer stop()

	started := false
	played := -1
	for {
		msg, err := b.read()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}

		switch msg.Type {
		case protocol.TypeGameComplete:
			return msg.Sentence, nil
		case protocol.TypeQuit:
			return nil, fmt.Errorf("%s: removed from game %s", b.ID, msg.GameID)
		case protocol.TypeMessage:
			b.logger.Debug().Str("data", msg.Data).Msg("Message")
			continue
		case protocol.TypeGameStateResponse:
		default:
			continue
		}

		state := msg.GameState
		if state == nil {
			continue
		}
		if state.Phase == engine.PhaseComplete {
			return state.Sentence(), nil
		}

		if !started && startWith > 0 && state.Phase == engine.PhaseLobby && len(state.Players) >= startWith {
			started = true
			b.logger.Info().Int("players", len(state.Players)).Msg("Starting game")
			if err := b.send(map[string]any{"type": protocol.TypeStartGame}); err != nil {
				return nil, err
			}
			continue
		}

		// One submission per sentence length; the next state tells us whether
		// it landed.
		if !MyTurn(state, b.ID) || played == len(state.Words) {
			continue
		}
		played = len(state.Words)

		if b.delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(b.delay):
			}
		}

		word := b.strategy.NextWord(state)
		b.logger.Info().Str("word", word).Int("position", played).Msg("Playing word")
		if err := b.send(map[string]any{"type": protocol.TypeAddWord, "word": word}); err != nil {
			return nil, err
		}
	}
}
