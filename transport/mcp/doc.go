// Package mcp provides a Model Context Protocol server for administering
// naval duel.
//
// The mcp package implements:
//   - MCP server for AI agent integration
//   - Tool definitions for session administration
//   - Stdio and HTTP transport modes
//
// MCP Tools:
//
// The package exposes the following tools for AI agents:
//   - list_sessions: List sessions filtered by phase, occupancy and order
//   - get_session: Get one session's seats, phase, turn and winner
//   - create_session: Create an empty session
//   - delete_session: Delete a session with no game in progress
//   - sweep_sessions: Run a reclamation sweep with optional timeouts
//   - server_stats: Sessions by phase, seats and live connections
//
// Every tool is a thin proxy over the admin REST API, so the MCP server can
// run in-process behind /mcp or as a separate stdio process pointed at a
// remote server.
//
// Usage:
//
//	// Stdio mode
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP mode
//	response := client.GetMCPServer().HandleMessage(ctx, body)
package mcp
