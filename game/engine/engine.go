package engine

import "fmt"

// ResolveShot fires at (x, y) on behalf of the seat owning shots, against the
// opponent fleet. Out-of-range and repeated coordinates are rejected with no
// mutation. On acceptance the grid cell is marked and, on a hit, the owning
// ship is marked destroyed once all of its cells have been hit.
func ResolveShot(fleet Fleet, shots ShotGrid, x, y int) (ShotResult, error) {
	target := Coord{X: x, Y: y}
	if !target.InBounds(BoardSize) || len(shots) < BoardSize || len(shots[y]) < BoardSize {
		return ShotResult{}, fmt.Errorf("%w: (%d,%d)", ErrOutOfRange, x, y)
	}
	if shots[y][x] != Untried {
		return ShotResult{}, fmt.Errorf("%w: (%d,%d)", ErrAlreadyTargeted, x, y)
	}

	owner := -1
	for i := range fleet {
		if fleet[i].Occupies(target) {
			owner = i
			break
		}
	}

	if owner < 0 {
		shots[y][x] = Miss
		return ShotResult{AllDestroyed: fleet.AllDestroyed()}, nil
	}

	shots[y][x] = Hit
	result := ShotResult{Hit: true}

	ship := &fleet[owner]
	if !ship.Destroyed && allHit(ship, shots) {
		ship.Destroyed = true
		result.ShipDestroyed = true
		result.SunkKind = ship.Kind
	}
	result.AllDestroyed = fleet.AllDestroyed()
	return result, nil
}

func allHit(ship *Ship, shots ShotGrid) bool {
	for _, c := range ship.Cells {
		if shots.At(c) != Hit {
			return false
		}
	}
	return true
}
