package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wricardo/cheese-pants/game/engine"
)

// Type is the value of a frame's "type" field
type Type string

// Inbound kinds
const (
	TypeJoin                Type = "join"
	TypeGetGameState        Type = "get-game-state"
	TypeStartGame           Type = "start-game"
	TypeAddWord             Type = "add-word"
	TypeDeleteWord          Type = "delete-word"
	TypeChangeTurn          Type = "change-turn"
	TypeUpdateTurnTimeLimit Type = "update-turn-time-limit"
	TypeRemovePlayer        Type = "remove-player"
	TypeTestConnection      Type = "test-connection"
	TypeMessage             Type = "message"
)

// Outbound kinds. TypeMessage is shared with the relay.
const (
	TypeGameStateResponse Type = "get-game-state-response"
	TypeGameComplete      Type = "game-complete"
	TypeQuit              Type = "quit"
	TypePong              Type = "pong"
)

var (
	// ErrMalformed is returned for frames that are not a JSON object with a
	// string "type" field.
	ErrMalformed = errors.New("malformed message")

	// ErrUnknownType is returned for a well-formed frame of an unknown kind
	ErrUnknownType = errors.New("unknown message type")
)

// Inbound is implemented by every message a client can send
type Inbound interface {
	Kind() Type
}

// Join asks to take a seat, or reconnects an existing one
type Join struct {
	GameID     string `json:"gameId"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// GetGameState requests the full state for the sender only
type GetGameState struct{}

// StartGame moves the room out of the lobby
type StartGame struct {
	PlayerID string `json:"playerId"`
}

// AddWord submits the sender's word
type AddWord struct {
	Word     string `json:"word"`
	PlayerID string `json:"playerId"`
}

// DeleteWord removes the word at Index
type DeleteWord struct {
	Index    int    `json:"wordIndex"`
	PlayerID string `json:"playerId"`
}

// ChangeTurn hands the turn to NewCurrentPlayerID
type ChangeTurn struct {
	NewCurrentPlayerID string `json:"newCurrentPlayerId"`
	PlayerID           string `json:"playerId"`
}

// UpdateTurnTimeLimit sets the per-turn limit in seconds
type UpdateTurnTimeLimit struct {
	NewTimeLimit int    `json:"newTimeLimit"`
	PlayerID     string `json:"playerId"`
}

// RemovePlayer evicts PlayerIDToRemove from the room
type RemovePlayer struct {
	PlayerIDToRemove string `json:"playerIdToRemove"`
	PlayerID         string `json:"playerId"`
}

// TestConnection is the client keepalive
type TestConnection struct{}

// Relay is a free-form chat message passed on verbatim
type Relay struct {
	Data json.RawMessage `json:"data"`

	// Raw holds the frame exactly as received
	Raw json.RawMessage `json:"-"`
}

func (Join) Kind() Type                { return TypeJoin }
func (GetGameState) Kind() Type        { return TypeGetGameState }
func (StartGame) Kind() Type           { return TypeStartGame }
func (AddWord) Kind() Type             { return TypeAddWord }
func (DeleteWord) Kind() Type          { return TypeDeleteWord }
func (ChangeTurn) Kind() Type          { return TypeChangeTurn }
func (UpdateTurnTimeLimit) Kind() Type { return TypeUpdateTurnTimeLimit }
func (RemovePlayer) Kind() Type        { return TypeRemovePlayer }
func (TestConnection) Kind() Type      { return TypeTestConnection }
func (Relay) Kind() Type               { return TypeMessage }

type envelope struct {
	Type *Type `json:"type"`
}

// DecodeInbound parses one client frame into its concrete message type
func DecodeInbound(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == nil {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	switch *env.Type {
	case TypeJoin:
		return decode[Join](data)
	case TypeGetGameState:
		return GetGameState{}, nil
	case TypeStartGame:
		return decode[StartGame](data)
	case TypeAddWord:
		return decode[AddWord](data)
	case TypeDeleteWord:
		return decodeDeleteWord(data)
	case TypeChangeTurn:
		return decode[ChangeTurn](data)
	case TypeUpdateTurnTimeLimit:
		return decode[UpdateTurnTimeLimit](data)
	case TypeRemovePlayer:
		return decode[RemovePlayer](data)
	case TypeTestConnection:
		return TestConnection{}, nil
	case TypeMessage:
		var m Relay
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, TypeMessage, err)
		}
		m.Raw = append(json.RawMessage(nil), data...)
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, *env.Type)
	}
}

func decode[T Inbound](data []byte) (Inbound, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, m.Kind(), err)
	}
	return m, nil
}

// decodeDeleteWord also accepts "index" for the word position
func decodeDeleteWord(data []byte) (Inbound, error) {
	var m struct {
		WordIndex *int   `json:"wordIndex"`
		Index     *int   `json:"index"`
		PlayerID  string `json:"playerId"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, TypeDeleteWord, err)
	}
	out := DeleteWord{PlayerID: m.PlayerID}
	switch {
	case m.WordIndex != nil:
		out.Index = *m.WordIndex
	case m.Index != nil:
		out.Index = *m.Index
	default:
		return nil, fmt.Errorf("%w: %s: missing wordIndex", ErrMalformed, TypeDeleteWord)
	}
	return out, nil
}

// Outbound is a frame sent to clients
type Outbound struct {
	Type      Type              `json:"type"`
	GameState *engine.GameState `json:"gameState,omitempty"`
	Sentence  []string          `json:"sentence,omitempty"`
	Data      string            `json:"data,omitempty"`
	GameID    string            `json:"gameId,omitempty"`

	// raw replaces the encoded frame for relayed messages
	raw json.RawMessage
}

// StateResponse carries the complete game state
func StateResponse(s *engine.GameState) Outbound {
	return Outbound{Type: TypeGameStateResponse, GameState: s}
}

// GameComplete announces the finished sentence
func GameComplete(sentence []string) Outbound {
	return Outbound{Type: TypeGameComplete, Sentence: sentence}
}

// Message is an informational or advisory text
func Message(text string) Outbound {
	return Outbound{Type: TypeMessage, Data: text}
}

// Quit tells a removed player's client to leave the room
func Quit(gameID string) Outbound {
	return Outbound{Type: TypeQuit, GameID: gameID}
}

// Pong answers a test-connection
func Pong() Outbound {
	return Outbound{Type: TypePong}
}

// Forward relays a client frame unchanged
func Forward(r Relay) Outbound {
	return Outbound{Type: TypeMessage, raw: r.Raw}
}

// Encode serializes the frame
func Encode(o Outbound) ([]byte, error) {
	if len(o.raw) > 0 {
		return o.raw, nil
	}
	return json.Marshal(o)
}
