package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/naval-duel/game/service"
	"github.com/wricardo/naval-duel/game/session"
)

// Client is a thin MCP client that proxies to the admin REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Naval Duel Admin",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Naval Duel - MCP Admin Interface

This is a thin client that proxies all requests to the admin REST API.
Players connect over WebSocket; these tools inspect and maintain the
session registry. Fleets and shot grids are never exposed here.

AVAILABLE TOOLS:
- list_sessions: List sessions, optionally filtered by phase or free seats
- get_session: Get one session's seats, phase, turn and winner
- create_session: Create an empty session and return its code
- delete_session: Delete a session that has no game in progress
- sweep_sessions: Remove abandoned sessions now
- server_stats: Sessions by phase, seats and live connections`),
	)

	// Register all tools
	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List sessions with optional filters",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"phase": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"waiting", "setup", "playing", "finished"},
					"description": "Only sessions in this phase",
				},
				"exclude_full": map[string]interface{}{
					"type":        "boolean",
					"description": "Skip sessions with both seats taken",
				},
				"max_seats": map[string]interface{}{
					"type":        "integer",
					"description": "Only sessions with at most this many seats taken",
				},
				"sort": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"created", "seats"},
					"description": "Sort key",
				},
				"order": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "Sort order (default asc)",
				},
			},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session code to retrieve",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new empty session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "delete_session",
		Description: "Delete a session. Sessions with a game in progress cannot be deleted.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session code to delete",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleDeleteSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "sweep_sessions",
		Description: "Remove abandoned sessions now. Timeouts are Go durations such as 30m or 2h.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"empty_timeout": map[string]interface{}{
					"type":        "string",
					"description": "Age after which sessions with no seats are removed",
				},
				"finished_timeout": map[string]interface{}{
					"type":        "string",
					"description": "Age after which finished sessions are removed",
				},
				"inactive_timeout": map[string]interface{}{
					"type":        "string",
					"description": "Age after which empty waiting or setup sessions are removed",
				},
			},
		},
	}, c.handleSweep)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_stats",
		Description: "Sessions by phase, seats and live connections",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleStats)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	return args
}

// Tool handlers

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	query := url.Values{}
	for _, key := range []string{"phase", "sort", "order"} {
		if v, _ := args[key].(string); v != "" {
			query.Set(key, v)
		}
	}
	if v, ok := args["exclude_full"].(bool); ok {
		query.Set("exclude_full", strconv.FormatBool(v))
	}
	if v, ok := args["max_seats"].(float64); ok {
		query.Set("max_seats", strconv.Itoa(int(v)))
	}

	path := "/api/sessions"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var response struct {
		Count    int                       `json:"count"`
		Sessions []*service.SessionSummary `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		fmt.Fprintf(&b, "- %s [%s] %d/%d seats%s (Created: %s)\n",
			s.ID, s.Phase, s.SeatCount, session.MaxSeats, seatNames(s),
			s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	var summary service.SessionSummary
	if err := c.apiCall(ctx, "GET", "/api/sessions/"+url.PathEscape(sessionID), nil, &summary); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSummary(&summary)), nil
}

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var summary service.SessionSummary
	if err := c.apiCall(ctx, "POST", "/api/sessions", nil, &summary); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nShare this code with both players.\n", summary.ID)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleDeleteSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	if err := c.apiCall(ctx, "DELETE", "/api/sessions/"+url.PathEscape(sessionID), nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Deleted session: %s\n", sessionID)), nil
}

func (c *Client) handleSweep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	body := map[string]string{}
	for _, key := range []string{"empty_timeout", "finished_timeout", "inactive_timeout"} {
		if v, _ := args[key].(string); v != "" {
			body[key] = v
		}
	}

	var report service.SweepReport
	if err := c.apiCall(ctx, "POST", "/api/sweep", body, &report); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Sweep removed %d session(s)\n  empty: %d\n  finished: %d\n  inactive: %d\nRemaining: %d\n",
		report.Total, report.EmptyRemoved, report.FinishedRemoved, report.InactiveRemoved, report.Remaining)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats service.Stats
	if err := c.apiCall(ctx, "GET", "/api/stats", nil, &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStats(&stats)), nil
}

// Formatting helpers

func seatNames(s *service.SessionSummary) string {
	if len(s.Seats) == 0 {
		return ""
	}
	names := make([]string, len(s.Seats))
	for i, seat := range s.Seats {
		names[i] = seat.DisplayName
	}
	return " " + strings.Join(names, " vs ")
}

func formatSummary(s *service.SessionSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\nPhase: %s\nCreated: %s\nSeats (%d/%d):\n",
		s.ID, s.Phase, s.CreatedAt.Format("2006-01-02 15:04:05"), s.SeatCount, session.MaxSeats)
	for _, seat := range s.Seats {
		ready := "not ready"
		if seat.Ready {
			ready = "ready"
		}
		fmt.Fprintf(&b, "  - %s (%s)\n", seat.DisplayName, ready)
	}
	if s.Turn != "" {
		fmt.Fprintf(&b, "Turn: %s\n", s.Turn)
	}
	if s.Winner != "" {
		fmt.Fprintf(&b, "Winner: %s\n", s.Winner)
	}
	return b.String()
}

func formatStats(stats *service.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sessions: %d\nSeats: %d\nConnections: %d (%d authenticated)\n",
		stats.Sessions, stats.Seats, stats.Connections, stats.Authenticated)

	phases := make([]string, 0, len(stats.ByPhase))
	for phase := range stats.ByPhase {
		phases = append(phases, string(phase))
	}
	sort.Strings(phases)
	for _, phase := range phases {
		fmt.Fprintf(&b, "  %s: %d\n", phase, stats.ByPhase[session.Phase(phase)])
	}
	return b.String()
}
