package protocol_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/naval-duel/game/engine"
	"github.com/wricardo/naval-duel/game/protocol"
	"github.com/wricardo/naval-duel/game/session"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected protocol.Inbound
	}{
		{"authenticate", `{"type":"authenticate","data":{"token":"abc"}}`, protocol.Authenticate{Token: "abc"}},
		{"join", `{"type":"join_session","data":{"session_id":"ABC123","display_name":"Alice"}}`,
			protocol.JoinSession{SessionID: "ABC123", DisplayName: "Alice"}},
		{"leave", `{"type":"leave_session"}`, protocol.LeaveSession{}},
		{"ready", `{"type":"mark_ready","data":{}}`, protocol.MarkReady{}},
		{"fire", `{"type":"fire_shot","data":{"x":3,"y":7}}`, protocol.FireShot{X: 3, Y: 7}},
		{"chat", `{"type":"chat","data":{"text":"gg"}}`, protocol.Chat{Text: "gg"}},
		{"restart", `{"type":"restart"}`, protocol.Restart{}},
		{"fleet", `{"type":"submit_fleet","data":{"ships":[{"kind":"destroyer","cells":[{"x":0,"y":0},{"x":0,"y":1}]}]}}`,
			protocol.SubmitFleet{Ships: []protocol.ShipPlacement{{
				Kind:  engine.Destroyer,
				Cells: []engine.Coord{{X: 0, Y: 0}, {X: 0, Y: 1}},
			}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := protocol.Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, msg)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		err  error
	}{
		{"not json", `{`, protocol.ErrMalformed},
		{"missing type", `{"data":{}}`, protocol.ErrMalformed},
		{"unknown type", `{"type":"surrender"}`, protocol.ErrUnknownType},
		{"missing data", `{"type":"fire_shot"}`, protocol.ErrMalformed},
		{"wrong field type", `{"type":"fire_shot","data":{"x":"a"}}`, protocol.ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := protocol.Decode([]byte(tt.raw))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestEncodeInboundDecodes(t *testing.T) {
	raw, err := protocol.EncodeInbound(protocol.FireShot{X: 4, Y: 5})
	require.NoError(t, err)

	msg, err := protocol.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, protocol.FireShot{X: 4, Y: 5}, msg)
}

func TestEncode(t *testing.T) {
	raw, err := protocol.Encode(protocol.Error{Kind: protocol.KindNotFound, Message: "session not found"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"error","data":{"kind":"not_found","message":"session not found"}}`, string(raw))

	raw, err = protocol.Encode(protocol.Superseded{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"superseded","data":{}}`, string(raw))
}

func newPlayingSession(t *testing.T) (*session.Session, *session.Seat, *session.Seat) {
	t.Helper()
	manager := session.NewManager()
	s := manager.Create()
	alice := session.NewSeat("alice", "Alice", time.Now())
	bob := session.NewSeat("bob", "Bob", time.Now())
	require.NoError(t, manager.AddSeat(s.ID, alice))
	require.NoError(t, manager.AddSeat(s.ID, bob))

	fleet := engine.Fleet{
		{ID: "destroyer", Kind: engine.Destroyer, Cells: []engine.Coord{{X: 0, Y: 0}, {X: 0, Y: 1}}},
		{ID: "cruiser", Kind: engine.Cruiser, Cells: []engine.Coord{{X: 5, Y: 5}, {X: 6, Y: 5}, {X: 7, Y: 5}}},
	}
	alice.Fleet = engine.CloneFleet(fleet)
	bob.Fleet = engine.CloneFleet(fleet)
	bob.Fleet[0].Destroyed = true
	alice.Shots[0][0] = engine.Hit
	alice.Shots[1][0] = engine.Hit
	s.Phase = session.PhasePlaying
	s.Turn = bob.ID
	return s, alice, bob
}

func TestEventNamesAreDistinct(t *testing.T) {
	all := []protocol.Event{
		protocol.Authenticated{},
		protocol.AuthFailed{},
		protocol.Rejoined{},
		protocol.OpponentRejoined{},
		protocol.Joined{},
		protocol.PlayerJoined{},
		protocol.Left{},
		protocol.PlayerLeft{},
		protocol.FleetAccepted{},
		protocol.OpponentPlaced{},
		protocol.PlacementRejected{},
		protocol.ReadyStatus{},
		protocol.GameStarted{},
		protocol.ShotResult{},
		protocol.ShotRejected{},
		protocol.ChatMessage{},
		protocol.GameRestarted{},
		protocol.OpponentDisconnected{},
		protocol.Superseded{},
		protocol.SessionClosed{},
		protocol.Error{},
	}

	seen := make(map[string]bool, len(all))
	for _, ev := range all {
		name := ev.EventName()
		assert.False(t, seen[name], "duplicate event name %q", name)
		seen[name] = true

		raw, err := protocol.Encode(ev)
		require.NoError(t, err, name)

		var envelope struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &envelope), name)
		assert.Equal(t, name, envelope.Event)
	}
	assert.Len(t, seen, 21)
}

func TestNewSessionViewRedaction(t *testing.T) {
	s, alice, bob := newPlayingSession(t)

	view := protocol.NewSessionView(s, alice.ID)
	require.Len(t, view.Seats, 2)

	own := view.Seats[0]
	assert.Equal(t, alice.ID, own.ID)
	for _, ship := range own.Fleet {
		assert.NotEmpty(t, ship.Cells, "own %s", ship.Kind)
	}

	opponent := view.Seats[1]
	assert.Equal(t, bob.ID, opponent.ID)
	require.Len(t, opponent.Fleet, 2)
	assert.True(t, opponent.Fleet[0].Destroyed)
	assert.Len(t, opponent.Fleet[0].Cells, 2)
	assert.Empty(t, opponent.Fleet[1].Cells)
	assert.Equal(t, 1, opponent.ShipsRemaining)
	assert.Equal(t, engine.Hit, own.Shots[0][0])

	// mutations to the snapshot never reach the session
	own.Shots[5][5] = engine.Miss
	assert.Equal(t, engine.Untried, alice.Shots[5][5])
}

func TestNewSessionViewNoViewer(t *testing.T) {
	s, _, _ := newPlayingSession(t)

	view := protocol.NewSessionView(s, "")
	for _, seat := range view.Seats {
		for _, ship := range seat.Fleet {
			if !ship.Destroyed {
				assert.Empty(t, ship.Cells)
			}
		}
	}
}

func TestSessionViewJSON(t *testing.T) {
	s, alice, _ := newPlayingSession(t)

	raw, err := protocol.Encode(protocol.GameStarted{Turn: s.Turn, Session: protocol.NewSessionView(s, alice.ID)})
	require.NoError(t, err)

	var decoded struct {
		Event string `json:"event"`
		Data  struct {
			Session struct {
				Phase string `json:"phase"`
				Seats []struct {
					Shots [][]string `json:"shots"`
				} `json:"seats"`
			} `json:"session"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "game_started", decoded.Event)
	assert.Equal(t, "playing", decoded.Data.Session.Phase)
	assert.Equal(t, "hit", decoded.Data.Session.Seats[0].Shots[0][0])
	assert.Equal(t, "untried", decoded.Data.Session.Seats[0].Shots[0][1])
}
