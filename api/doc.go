// Package api provides the HTTP admin API for naval duel.
//
// The api package implements:
//   - Session listing with phase, occupancy and ordering filters
//   - Session creation, inspection and deletion
//   - Seating an identity from a token without a live connection
//   - On-demand reclamation sweeps
//   - Server statistics and health
//   - WebSocket upgrade handling
//
// Endpoints:
//
// Session Management:
//   - GET /api/sessions - List sessions (?phase=&exclude_full=&max_seats=&sort=created|seats&order=asc|desc)
//   - POST /api/sessions - Create an empty session
//   - GET /api/sessions/{id} - Get the sanitized session projection
//   - DELETE /api/sessions/{id} - Delete a session
//   - POST /api/sessions/{id}/join - Seat the identity behind a token
//
// Maintenance:
//   - POST /api/sweep - Run one sweep with optional duration overrides
//   - GET /api/stats - Sessions by phase, seats and live connections
//   - GET /health - Liveness
//
// Projections never include fleets or shot grids.
//
// Request/Response Format:
//
// All endpoints accept and return JSON. A sweep request looks like:
//
//	{
//	  "empty_timeout": "30m",
//	  "finished_timeout": "1h",
//	  "inactive_timeout": "2h"
//	}
//
// Usage:
//
//	server := api.NewServer(svc, hub, api.WithLogger(logger))
//	http.ListenAndServe(":8080", server)
//
// Error Handling:
//
// Errors are returned as JSON with an HTTP status derived from the service
// error: 404 for unknown sessions, 400 for bad input, 401 for rejected
// tokens and 409 for rule violations.
//
//	{
//	  "error": "not found: session ABC123"
//	}
package api
