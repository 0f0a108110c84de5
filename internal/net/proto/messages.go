// Package proto defines the JSON messages exchanged over the session
// websocket.
package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"arena-duel/server/internal/input"
	"arena-duel/server/internal/match"
)

// ErrInvalidMessage wraps every decode or validation failure.
var ErrInvalidMessage = errors.New("invalid message")

// Type discriminates messages on the wire.
type Type string

const (
	TypeJoin   Type = "join"
	TypeJoined Type = "joined"
	TypeLeave  Type = "leave"
	TypeInputs Type = "inputs"
	TypeState  Type = "state"
	TypePing   Type = "ping"
	TypePong   Type = "pong"
)

// Leave reasons.
const (
	ReasonMatchFull    = "match_full"
	ReasonSlotTaken    = "slot_taken"
	ReasonUnknownMatch = "unknown_match"
	ReasonTimeout      = "timeout"
	ReasonLeft         = "left"
	ReasonReplaced     = "replaced"
	ReasonShutdown     = "shutdown"
)

// Slot names accepted in join requests.
const (
	SlotHost  = "host"
	SlotGuest = "guest"
)

// Join asks to bind a connection to a match slot.
type Join struct {
	Type      Type   `json:"type"`
	MatchID   string `json:"matchId" jsonschema:"minLength=1"`
	ProfileID string `json:"profileId" jsonschema:"minLength=1"`
	Slot      string `json:"slot,omitempty" jsonschema:"enum=host,enum=guest"`
}

// Descriptor tells a client where it sits in a match.
type Descriptor struct {
	MatchID         string `json:"matchId"`
	Slot            string `json:"slot"`
	ProfileID       string `json:"profileId"`
	Opponent        string `json:"opponent,omitempty"`
	Seed            uint32 `json:"seed"`
	Frame           uint64 `json:"frame"`
	Phase           string `json:"phase"`
	InputLeadFrames int    `json:"inputLeadFrames"`
	Reconnect       bool   `json:"reconnect"`
}

// Joined acknowledges a join.
type Joined struct {
	Type         Type       `json:"type"`
	ConnectionID string     `json:"connectionId"`
	Descriptor   Descriptor `json:"descriptor"`
}

// Leave announces a departure or rejects a join.
type Leave struct {
	Type         Type   `json:"type"`
	Reason       string `json:"reason"`
	ConnectionID string `json:"connectionId,omitempty"`
}

// Inputs carries one participant's controls for one frame.
type Inputs struct {
	Type         Type        `json:"type"`
	Frame        uint64      `json:"frame" jsonschema:"minimum=1"`
	Inputs       input.Frame `json:"inputs"`
	ConnectionID string      `json:"connectionId" jsonschema:"minLength=1"`
}

// State is the authoritative snapshot after a frame was applied.
type State struct {
	Type     Type           `json:"type"`
	Frame    uint64         `json:"frame"`
	Fallback []string       `json:"fallback,omitempty"`
	Snapshot match.Snapshot `json:"snapshot"`
}

// Ping and Pong carry the sender's clock in unix milliseconds.
type Ping struct {
	Type   Type  `json:"type"`
	SentAt int64 `json:"sentAt"`
}

type Pong struct {
	Type   Type  `json:"type"`
	SentAt int64 `json:"sentAt"`
}

type envelope struct {
	Type Type `json:"type"`
}

// Decode parses one client or server message and validates it.
func Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidMessage)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	var msg any
	switch env.Type {
	case TypeJoin:
		msg = &Join{}
	case TypeJoined:
		msg = &Joined{}
	case TypeLeave:
		msg = &Leave{}
	case TypeInputs:
		msg = &Inputs{}
	case TypeState:
		msg = &State{}
	case TypePing:
		msg = &Ping{}
	case TypePong:
		msg = &Pong{}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, env.Type)
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMessage, env.Type, err)
	}
	if err := Validate(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Validate checks required fields.
func Validate(msg any) error {
	switch m := msg.(type) {
	case *Join:
		if strings.TrimSpace(m.MatchID) == "" {
			return fmt.Errorf("%w: join: matchId is required", ErrInvalidMessage)
		}
		if strings.TrimSpace(m.ProfileID) == "" {
			return fmt.Errorf("%w: join: profileId is required", ErrInvalidMessage)
		}
		if m.Slot != "" && m.Slot != SlotHost && m.Slot != SlotGuest {
			return fmt.Errorf("%w: join: unknown slot %q", ErrInvalidMessage, m.Slot)
		}
	case *Inputs:
		if m.Frame == 0 {
			return fmt.Errorf("%w: inputs: frame must be positive", ErrInvalidMessage)
		}
		if m.ConnectionID == "" {
			return fmt.Errorf("%w: inputs: connectionId is required", ErrInvalidMessage)
		}
	case *Leave:
		if m.Reason == "" {
			return fmt.Errorf("%w: leave: reason is required", ErrInvalidMessage)
		}
	}
	return nil
}

// Encode stamps the message type and marshals msg.
func Encode(msg any) ([]byte, error) {
	switch m := msg.(type) {
	case *Join:
		m.Type = TypeJoin
	case *Joined:
		m.Type = TypeJoined
	case *Leave:
		m.Type = TypeLeave
	case *Inputs:
		m.Type = TypeInputs
	case *State:
		m.Type = TypeState
	case *Ping:
		m.Type = TypePing
	case *Pong:
		m.Type = TypePong
	default:
		return nil, fmt.Errorf("%w: cannot encode %T", ErrInvalidMessage, msg)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", msg, err)
	}
	return data, nil
}
