package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wricardo/naval-duel/game/engine"
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
)

// Inbound is an action sent by a client
type Inbound interface {
	Action() string
	isInbound()
}

type Authenticate struct {
	Token string `json:"token"`
}

type JoinSession struct {
	SessionID   string `json:"session_id"`
	DisplayName string `json:"display_name"`
}

type LeaveSession struct{}

// ShipPlacement is one ship of a submitted fleet
type ShipPlacement struct {
	Kind  engine.ShipKind `json:"kind"`
	Cells []engine.Coord  `json:"cells"`
}

type SubmitFleet struct {
	Ships []ShipPlacement `json:"ships"`
}

// Fleet converts the placement into engine ships
func (m SubmitFleet) Fleet() engine.Fleet {
	fleet := make(engine.Fleet, len(m.Ships))
	for i, p := range m.Ships {
		fleet[i] = engine.Ship{Kind: p.Kind, Cells: append([]engine.Coord(nil), p.Cells...)}
	}
	return fleet
}

type MarkReady struct{}

type FireShot struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Chat struct {
	Text string `json:"text"`
}

type Restart struct{}

const (
	ActionAuthenticate = "authenticate"
	ActionJoinSession  = "join_session"
	ActionLeaveSession = "leave_session"
	ActionSubmitFleet  = "submit_fleet"
	ActionMarkReady    = "mark_ready"
	ActionFireShot     = "fire_shot"
	ActionChat         = "chat"
	ActionRestart      = "restart"
)

func (Authenticate) Action() string { return ActionAuthenticate }
func (JoinSession) Action() string  { return ActionJoinSession }
func (LeaveSession) Action() string { return ActionLeaveSession }
func (SubmitFleet) Action() string  { return ActionSubmitFleet }
func (MarkReady) Action() string    { return ActionMarkReady }
func (FireShot) Action() string     { return ActionFireShot }
func (Chat) Action() string         { return ActionChat }
func (Restart) Action() string      { return ActionRestart }

func (Authenticate) isInbound() {}
func (JoinSession) isInbound()  {}
func (LeaveSession) isInbound() {}
func (SubmitFleet) isInbound()  {}
func (MarkReady) isInbound()    {}
func (FireShot) isInbound()     {}
func (Chat) isInbound()         {}
func (Restart) isInbound()      {}

type inboundEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode parses a client envelope {"type": ..., "data": {...}}
func Decode(raw []byte) (Inbound, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var msg Inbound
	switch env.Type {
	case ActionAuthenticate:
		msg = &Authenticate{}
	case ActionJoinSession:
		msg = &JoinSession{}
	case ActionLeaveSession:
		return LeaveSession{}, nil
	case ActionSubmitFleet:
		msg = &SubmitFleet{}
	case ActionMarkReady:
		return MarkReady{}, nil
	case ActionFireShot:
		msg = &FireShot{}
	case ActionChat:
		msg = &Chat{}
	case ActionRestart:
		return Restart{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil, fmt.Errorf("%w: %s requires data", ErrMalformed, env.Type)
	}
	if err := json.Unmarshal(env.Data, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}

	switch m := msg.(type) {
	case *Authenticate:
		return *m, nil
	case *JoinSession:
		return *m, nil
	case *SubmitFleet:
		return *m, nil
	case *FireShot:
		return *m, nil
	case *Chat:
		return *m, nil
	}
	return msg, nil
}

// EncodeInbound wraps an action in its client envelope. Used by clients and tests.
func EncodeInbound(msg Inbound) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(inboundEnvelope{Type: msg.Action(), Data: data})
}
