package protocol

import (
	"encoding/json"
	"time"

	"github.com/wricardo/naval-duel/game/engine"
)

// Event is a message sent to a client. The set of events is closed.
type Event interface {
	EventName() string
	isEvent()
}

// ErrorKind classifies rejected actions
type ErrorKind string

const (
	KindAuthenticationRequired ErrorKind = "authentication_required"
	KindNotFound               ErrorKind = "not_found"
	KindPrecondition           ErrorKind = "precondition"
	KindInternal               ErrorKind = "internal"
)

type Authenticated struct {
	IdentityID string `json:"identity_id"`
}

type AuthFailed struct {
	Reason string `json:"reason"`
}

// Rejoined is sent to an identity that authenticated while holding a seat
type Rejoined struct {
	SeatID  string      `json:"seat_id"`
	Session SessionView `json:"session"`
}

type OpponentRejoined struct {
	SeatID  string      `json:"seat_id"`
	Session SessionView `json:"session"`
}

type Joined struct {
	SeatID  string      `json:"seat_id"`
	Session SessionView `json:"session"`
}

type PlayerJoined struct {
	SeatID  string      `json:"seat_id"`
	Session SessionView `json:"session"`
}

type Left struct {
	SessionID string `json:"session_id"`
}

type PlayerLeft struct {
	SeatID  string      `json:"seat_id"`
	Session SessionView `json:"session"`
}

type FleetAccepted struct {
	Session SessionView `json:"session"`
}

// OpponentPlaced tells the other seat a fleet was stored, never where
type OpponentPlaced struct {
	SeatID string `json:"seat_id"`
}

type PlacementRejected struct {
	Reason string `json:"reason"`
}

type ReadyStatus struct {
	SeatID  string      `json:"seat_id"`
	Session SessionView `json:"session"`
}

type GameStarted struct {
	Turn    string      `json:"turn"`
	Session SessionView `json:"session"`
}

type ShotResult struct {
	SeatID        string          `json:"seat_id"`
	X             int             `json:"x"`
	Y             int             `json:"y"`
	Hit           bool            `json:"hit"`
	ShipDestroyed bool            `json:"ship_destroyed"`
	SunkKind      engine.ShipKind `json:"sunk_kind,omitempty"`
	AllDestroyed  bool            `json:"all_destroyed"`
	NextTurn      string          `json:"next_turn,omitempty"`
	Winner        string          `json:"winner,omitempty"`
	Session       SessionView     `json:"session"`
}

type ShotRejected struct {
	Reason string `json:"reason"`
}

type ChatMessage struct {
	SeatID      string    `json:"seat_id"`
	DisplayName string    `json:"display_name"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

type GameRestarted struct {
	Session SessionView `json:"session"`
}

// OpponentDisconnected carries a reconnect deadline when the seat is held
// open for a grace period
type OpponentDisconnected struct {
	SeatID   string       `json:"seat_id"`
	Deadline *time.Time   `json:"reconnect_deadline,omitempty"`
	Session  *SessionView `json:"session,omitempty"`
}

// Superseded is sent to a connection replaced by a newer one for the same
// identity
type Superseded struct{}

type SessionClosed struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (Authenticated) EventName() string        { return "authenticated" }
func (AuthFailed) EventName() string           { return "auth_failed" }
func (Rejoined) EventName() string             { return "rejoined" }
func (OpponentRejoined) EventName() string     { return "opponent_rejoined" }
func (Joined) EventName() string               { return "joined" }
func (PlayerJoined) EventName() string         { return "player_joined" }
func (Left) EventName() string                 { return "left" }
func (PlayerLeft) EventName() string           { return "player_left" }
func (FleetAccepted) EventName() string        { return "fleet_accepted" }
func (OpponentPlaced) EventName() string       { return "opponent_placed" }
func (PlacementRejected) EventName() string    { return "placement_rejected" }
func (ReadyStatus) EventName() string          { return "ready_status" }
func (GameStarted) EventName() string          { return "game_started" }
func (ShotResult) EventName() string           { return "shot_result" }
func (ShotRejected) EventName() string         { return "shot_rejected" }
func (ChatMessage) EventName() string          { return "chat_message" }
func (GameRestarted) EventName() string        { return "game_restarted" }
func (OpponentDisconnected) EventName() string { return "opponent_disconnected" }
func (Superseded) EventName() string           { return "superseded" }
func (SessionClosed) EventName() string        { return "session_closed" }
func (Error) EventName() string                { return "error" }

func (Authenticated) isEvent()        {}
func (AuthFailed) isEvent()           {}
func (Rejoined) isEvent()             {}
func (OpponentRejoined) isEvent()     {}
func (Joined) isEvent()               {}
func (PlayerJoined) isEvent()         {}
func (Left) isEvent()                 {}
func (PlayerLeft) isEvent()           {}
func (FleetAccepted) isEvent()        {}
func (OpponentPlaced) isEvent()       {}
func (PlacementRejected) isEvent()    {}
func (ReadyStatus) isEvent()          {}
func (GameStarted) isEvent()          {}
func (ShotResult) isEvent()           {}
func (ShotRejected) isEvent()         {}
func (ChatMessage) isEvent()          {}
func (GameRestarted) isEvent()        {}
func (OpponentDisconnected) isEvent() {}
func (Superseded) isEvent()           {}
func (SessionClosed) isEvent()        {}
func (Error) isEvent()                {}

type outboundEnvelope struct {
	Event string `json:"event"`
	Data  Event  `json:"data"`
}

// Encode wraps an event in its wire envelope {"event": ..., "data": {...}}
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(outboundEnvelope{Event: ev.EventName(), Data: ev})
}
