// Package protocol defines the messages exchanged with game clients.
//
// Client actions arrive as {"type": "fire_shot", "data": {"x": 1, "y": 2}} and
// decode into one of the Inbound types. Server events leave as
// {"event": "shot_result", "data": {...}}. Both sets are closed: every
// message has a concrete Go type and handlers switch over them exhaustively.
//
// Snapshots embedded in events are built per viewer with NewSessionView so
// opponent ship positions never reach the wire before they are destroyed.
package protocol
