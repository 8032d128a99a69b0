package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wricardo/naval-duel/game/protocol"
	"github.com/wricardo/naval-duel/game/service"
	"github.com/wricardo/naval-duel/game/session"
)

type tokenVerifier struct{}

func (tokenVerifier) Verify(token string) (string, error) {
	if !strings.HasPrefix(token, "tok-") {
		return "", errors.New("token rejected")
	}
	return strings.TrimPrefix(token, "tok-"), nil
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type testServer struct {
	hub      *Hub
	svc      *service.Service
	sessions *session.Manager
	server   *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	logger := zaptest.NewLogger(t)
	sessions := session.NewManager()
	svc := service.NewGameService(sessions, tokenVerifier{}, logger)
	hub := NewHub(svc, logger, 0)
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		server.Close()
		hub.Close()
	})
	return &testServer{hub: hub, svc: svc, sessions: sessions, server: server}
}

// dial opens a connection, sending token as a bearer credential when set
func (s *testServer) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	return s.dialURL(t, "/ws", token)
}

func (s *testServer) dialURL(t *testing.T, path, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + path
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) envelope {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := ws.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func send(t *testing.T, ws *websocket.Conn, msg protocol.Inbound) {
	t.Helper()
	raw, err := protocol.EncodeInbound(msg)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, raw))
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil, zaptest.NewLogger(t), 0)
	assert.Equal(t, DefaultSendBuffer, hub.sendBuffer)
	assert.NotNil(t, hub.clients)
	assert.Zero(t, hub.Clients())
}

func TestBearerHeaderAuthenticates(t *testing.T) {
	s := newTestServer(t)
	ws := s.dial(t, "tok-alice")

	env := readEvent(t, ws)
	assert.Equal(t, "authenticated", env.Event)
	assert.Contains(t, string(env.Data), "alice")
}

func TestQueryTokenIsIgnored(t *testing.T) {
	s := newTestServer(t)
	summary, err := s.svc.CreateSession(context.Background())
	require.NoError(t, err)

	ws := s.dialURL(t, "/ws?token=tok-alice", "")

	send(t, ws, protocol.JoinSession{SessionID: summary.ID, DisplayName: "Alice"})
	env := readEvent(t, ws)
	require.Equal(t, "error", env.Event)

	var payload protocol.Error
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, protocol.KindAuthenticationRequired, payload.Kind)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer tok-alice", "tok-alice", true},
		{"bearer tok-alice", "tok-alice", true},
		{"Bearer ", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		token, ok := bearerToken(r)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.token, token, tt.header)
	}
}

func TestAuthenticateMessage(t *testing.T) {
	s := newTestServer(t)
	ws := s.dial(t, "")

	send(t, ws, protocol.Authenticate{Token: "nope"})
	assert.Equal(t, "auth_failed", readEvent(t, ws).Event)

	send(t, ws, protocol.Authenticate{Token: "tok-bob"})
	assert.Equal(t, "authenticated", readEvent(t, ws).Event)
}

func TestMalformedMessage(t *testing.T) {
	s := newTestServer(t)
	ws := s.dial(t, "")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	env := readEvent(t, ws)
	require.Equal(t, "error", env.Event)

	var payload protocol.Error
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, protocol.KindPrecondition, payload.Kind)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport"}`)))
	assert.Equal(t, "error", readEvent(t, ws).Event)

	// the connection survives bad input
	send(t, ws, protocol.Authenticate{Token: "tok-carol"})
	assert.Equal(t, "authenticated", readEvent(t, ws).Event)
}

func TestJoinOverWebSocket(t *testing.T) {
	s := newTestServer(t)
	summary, err := s.svc.CreateSession(context.Background())
	require.NoError(t, err)

	alice := s.dial(t, "tok-alice")
	readEvent(t, alice)
	bob := s.dial(t, "tok-bob")
	readEvent(t, bob)

	send(t, alice, protocol.JoinSession{SessionID: summary.ID, DisplayName: "Alice"})
	assert.Equal(t, "joined", readEvent(t, alice).Event)

	send(t, bob, protocol.JoinSession{SessionID: summary.ID, DisplayName: "Bob"})
	assert.Equal(t, "joined", readEvent(t, bob).Event)
	assert.Equal(t, "player_joined", readEvent(t, alice).Event)

	send(t, alice, protocol.Chat{Text: "good luck"})
	assert.Equal(t, "chat_message", readEvent(t, alice).Event)
	assert.Equal(t, "chat_message", readEvent(t, bob).Event)
}

func TestDisconnectVacatesSeat(t *testing.T) {
	s := newTestServer(t)
	summary, err := s.svc.CreateSession(context.Background())
	require.NoError(t, err)

	alice := s.dial(t, "tok-alice")
	readEvent(t, alice)
	send(t, alice, protocol.JoinSession{SessionID: summary.ID, DisplayName: "Alice"})
	readEvent(t, alice)
	require.Eventually(t, func() bool { return s.hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	alice.Close()

	require.Eventually(t, func() bool {
		return s.hub.Clients() == 0 && s.svc.Stats(context.Background()).Seats == 0
	}, time.Second, 5*time.Millisecond)
}

func TestHubClose(t *testing.T) {
	s := newTestServer(t)
	ws := s.dial(t, "tok-alice")
	readEvent(t, ws)

	s.hub.Close()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := ws.ReadMessage()
	require.Error(t, err)
	require.Eventually(t, func() bool { return s.hub.Clients() == 0 }, time.Second, 5*time.Millisecond)

	// closing twice is harmless
	s.hub.Close()
}

func TestEmitDropsWhenFull(t *testing.T) {
	hub := NewHub(nil, zaptest.NewLogger(t), 1)
	client := &Client{hub: hub, send: make(chan []byte, 1)}

	client.Emit(protocol.Error{Kind: protocol.KindInternal, Message: "first"})
	client.Emit(protocol.Error{Kind: protocol.KindInternal, Message: "second"})

	assert.Len(t, client.send, 1)
	assert.Equal(t, int64(1), client.dropped.Load())

	first := <-client.send
	assert.Contains(t, string(first), "first")

	client.close()
	client.close()
	assert.NotPanics(t, func() {
		client.Emit(protocol.Error{Kind: protocol.KindInternal, Message: "late"})
	})
}
