// Package service provides the session protocol engine for naval duel.
//
// The service package implements:
//   - Per-connection dispatch of client actions
//   - Authentication and identity to connection binding
//   - Phase and turn enforcement over the session registry
//   - Per-viewer redacted snapshots in outbound events
//   - Administrative operations for the REST and MCP surfaces
//
// Core Types:
//
// Service is the engine. A transport calls Connect when a client arrives,
// Handle for every decoded action and Disconnect when the connection drops.
// GameService is the administrative interface consumed by the api package.
//
// Concurrency:
//
// A single mutex serialises every action, disconnect, admin call and sweep,
// so each handler runs to completion against a consistent registry. Events
// produced by a handler are queued and emitted after the lock is released;
// emitters must not block.
//
// Errors:
//
// Rejections wrap one of ErrAuthenticationRequired, ErrNotFound,
// ErrPrecondition or ErrInvalidCredential and are turned into protocol events
// for the caller. Validation always precedes mutation, so a rejected action
// leaves no trace.
//
// Usage:
//
//	sessions := session.NewManager()
//	svc := service.NewGameService(sessions, verifier, logger)
//
//	conn := svc.Connect(client)
//	svc.Handle(conn, protocol.Authenticate{Token: token})
//	svc.Handle(conn, protocol.JoinSession{SessionID: id, DisplayName: "Alice"})
//	svc.Disconnect(conn)
package service
