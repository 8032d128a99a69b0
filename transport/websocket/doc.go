// Package websocket provides the WebSocket transport for naval duel.
//
// The websocket package implements:
//   - Upgrading HTTP requests to persistent client connections
//   - Decoding inbound actions and handing them to the game service
//   - Bounded, non-blocking delivery of outbound events
//   - Keepalive pings and connection lifecycle management
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub tracks every
// client. Each client runs a read pump and a write pump. The read pump feeds
// the service; the service emits events back through Client.Emit, which
// queues them for the write pump.
//
// Message Protocol:
//
// Frames are JSON text messages, one per action or event:
//   - Incoming: {"type": "fire_shot", "data": {"x": 3, "y": 7}}
//   - Outgoing: {"event": "shot_result", "data": {...}}
//
// Malformed frames produce an error event and leave the connection open.
//
// Usage:
//
//	hub := websocket.NewHub(svc, logger, websocket.DefaultSendBuffer)
//	go hub.Run()
//	defer hub.Close()
//
//	router.HandleFunc("/ws", hub.ServeWS)
//
// Connection Lifecycle:
//
// 1. Client connects, optionally with an Authorization bearer header to
//    authenticate at once
// 2. Connection registered with hub and service
// 3. Client sends actions, receives events
// 4. Disconnection tears down the service connection and unregisters
//
// Concurrency:
//
// Emit never blocks. When a client falls behind and its queue fills, further
// events for it are dropped and logged.
package websocket
