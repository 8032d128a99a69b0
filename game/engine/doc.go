// Package engine provides the board rules for the naval duel game.
//
// The engine package implements:
//   - The canonical five-ship fleet and its geometry rules
//   - Whole-fleet placement validation on the 10x10 board
//   - Shot resolution against an opponent fleet
//   - Shot grid initialisation and text rendering helpers
//
// Core Types:
//
// A Fleet is the list of Ships owned by one seat. Each Ship has a ShipKind
// (carrier, battleship, cruiser, submarine, destroyer) whose canonical length
// fixes how many cells it covers. A ShotGrid records the outcome of every
// shot a seat has fired at its opponent.
//
// Usage:
//
//	if err := engine.ValidateFleet(fleet); err != nil {
//		return err // reject the whole placement
//	}
//	fleet = engine.NormalizeFleet(fleet)
//
//	shots := engine.NewShotGrid(engine.BoardSize)
//	result, err := engine.ResolveShot(fleet, shots, 3, 4)
//
// Game Rules:
//
// Coordinates are zero-based (x, y) pairs within [0, 10). Ships lie in a
// single straight contiguous run, never overlap, and a fleet contains exactly
// one ship of each kind. A ship is destroyed once every cell it covers has
// been hit; the game is won when every ship of the opposing fleet is
// destroyed. The package holds no state beyond the values passed in.
package engine
