package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wricardo/naval-duel/api"
	"github.com/wricardo/naval-duel/game/service"
	"github.com/wricardo/naval-duel/game/session"
)

type identityVerifier struct{}

func (identityVerifier) Verify(token string) (string, error) {
	if token == "" {
		return "", errors.New("empty token")
	}
	return token, nil
}

type fixture struct {
	client *Client
	svc    *service.Service
	server *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	svc := service.NewGameService(session.NewManager(), identityVerifier{}, zaptest.NewLogger(t))
	server := httptest.NewServer(api.NewServer(svc, nil))
	t.Cleanup(server.Close)
	return &fixture{client: NewClient(server.URL), svc: svc, server: server}
}

func call(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	content, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return content.Text
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	assert.Equal(t, "http://localhost:8080", client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.GetMCPServer())
}

func TestToolsAreRegistered(t *testing.T) {
	client := NewClient("http://localhost:8080")

	raw := client.GetMCPServer().HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`))
	data, err := json.Marshal(raw)
	require.NoError(t, err)

	for _, name := range []string{"list_sessions", "get_session", "create_session", "delete_session", "sweep_sessions", "server_stats"} {
		assert.Contains(t, string(data), `"`+name+`"`)
	}
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stats", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"sessions": 3})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var stats service.Stats
	require.NoError(t, client.apiCall(context.Background(), "GET", "/api/stats", nil, &stats))
	assert.Equal(t, 3, stats.Sessions)
}

func TestClient_apiCall_Errors(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1")
		assert.Error(t, client.apiCall(context.Background(), "GET", "/api/stats", nil, nil))
	})

	t.Run("error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": "game in progress"})
		}))
		defer server.Close()

		err := NewClient(server.URL).apiCall(context.Background(), "DELETE", "/api/sessions/X", nil, nil)
		require.Error(t, err)
		assert.Equal(t, "game in progress", err.Error())
	})

	t.Run("bare status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
		}))
		defer server.Close()

		err := NewClient(server.URL).apiCall(context.Background(), "GET", "/api/stats", nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
	})
}

func TestCreateGetDeleteSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.client.handleCreateSession(ctx, call(map[string]interface{}{}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, text(t, result), "Created session:")

	sessions, err := f.svc.ListSessions(ctx, session.ListOptions{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	id := sessions[0].ID

	_, err = f.svc.JoinSession(ctx, id, "alice", "Alice")
	require.NoError(t, err)

	result, err = f.client.handleGetSession(ctx, call(map[string]interface{}{"session_id": id}))
	require.NoError(t, err)
	out := text(t, result)
	assert.Contains(t, out, "Session: "+id)
	assert.Contains(t, out, "Phase: waiting")
	assert.Contains(t, out, "Alice (not ready)")

	result, err = f.client.handleDeleteSession(ctx, call(map[string]interface{}{"session_id": id}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	result, err = f.client.handleGetSession(ctx, call(map[string]interface{}{"session_id": id}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, text(t, result), "not found")
}

func TestMissingSessionID(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")

	result, err := client.handleGetSession(context.Background(), call(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = client.handleDeleteSession(context.Background(), call(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestListSessionsFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	full, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)
	_, err = f.svc.JoinSession(ctx, full.ID, "alice", "Alice")
	require.NoError(t, err)
	_, err = f.svc.JoinSession(ctx, full.ID, "bob", "Bob")
	require.NoError(t, err)

	open, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)

	result, err := f.client.handleListSessions(ctx, call(map[string]interface{}{}))
	require.NoError(t, err)
	out := text(t, result)
	assert.Contains(t, out, "Sessions (2)")
	assert.Contains(t, out, "Alice vs Bob")

	result, err = f.client.handleListSessions(ctx, call(map[string]interface{}{
		"exclude_full": true,
		"sort":         "seats",
		"order":        "desc",
	}))
	require.NoError(t, err)
	out = text(t, result)
	assert.Contains(t, out, "Sessions (1)")
	assert.Contains(t, out, open.ID)
	assert.NotContains(t, out, full.ID)

	result, err = f.client.handleListSessions(ctx, call(map[string]interface{}{"phase": "setup"}))
	require.NoError(t, err)
	assert.Contains(t, text(t, result), full.ID)

	result, err = f.client.handleListSessions(ctx, call(map[string]interface{}{"max_seats": float64(0)}))
	require.NoError(t, err)
	out = text(t, result)
	assert.Contains(t, out, open.ID)
	assert.NotContains(t, out, full.ID)

	result, err = f.client.handleListSessions(ctx, call(map[string]interface{}{"phase": "sailing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSweepAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)
	kept, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)
	_, err = f.svc.JoinSession(ctx, kept.ID, "alice", "Alice")
	require.NoError(t, err)

	result, err := f.client.handleStats(ctx, call(nil))
	require.NoError(t, err)
	out := text(t, result)
	assert.Contains(t, out, "Sessions: 2")
	assert.Contains(t, out, "Seats: 1")
	assert.Contains(t, out, "waiting: 2")

	result, err = f.client.handleSweep(ctx, call(map[string]interface{}{"empty_timeout": "0s"}))
	require.NoError(t, err)
	out = text(t, result)
	assert.Contains(t, out, "Sweep removed 1 session(s)")
	assert.Contains(t, out, "Remaining: 1")

	result, err = f.client.handleSweep(ctx, call(map[string]interface{}{"finished_timeout": "later"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
