// Package session provides the authoritative session registry for naval duel.
//
// The session package implements:
//   - Thread-safe session storage keyed by a short upper-case code
//   - Seat admission and removal with the phase transitions they imply
//   - Filtered and sorted listing for the admin surface
//   - Age-based reclamation sweeps
//
// Core Types:
//
// Manager is the registry. Session holds two Seats at most, the current
// Phase, whose turn it is and the winner. A Seat carries the owning identity,
// the seat's fleet and the grid of shots it has fired.
//
// Phases:
//
// A session is created waiting. Filling the second seat moves it to setup.
// Losing a seat from any other phase sends it back to waiting and clears the
// game state of the seat left behind. The playing and finished transitions
// are driven by the game service.
//
// Usage:
//
//	manager := session.NewManager()
//	sess := manager.Create()
//
//	seat := session.NewSeat(identityID, "Alice", time.Now())
//	if err := manager.AddSeat(sess.ID, seat); err != nil {
//		return err
//	}
//
//	result := manager.Sweep(session.DefaultThresholds())
//
// Concurrency:
//
// The Manager guards its map with an RWMutex. Session values it returns are
// shared and must only be mutated by a single owner at a time; the game
// service serialises all mutations behind its own lock.
package session
