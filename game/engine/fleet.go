package engine

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrInvalidFleet    = errors.New("invalid fleet")
	ErrOutOfRange      = errors.New("coordinates out of range")
	ErrAlreadyTargeted = errors.New("coordinates already targeted")
)

// ValidateFleet checks a complete fleet against the placement rules. The
// returned error wraps ErrInvalidFleet and names the first violation found.
func ValidateFleet(fleet Fleet) error {
	if len(fleet) != FleetSize {
		return fmt.Errorf("%w: expected %d ships, got %d", ErrInvalidFleet, FleetSize, len(fleet))
	}

	seenKinds := make(map[ShipKind]bool, FleetSize)
	occupied := make(map[Coord]ShipKind, 17)

	for i := range fleet {
		ship := &fleet[i]
		if !ship.Kind.Valid() {
			return fmt.Errorf("%w: unknown ship kind %q", ErrInvalidFleet, ship.Kind)
		}
		if seenKinds[ship.Kind] {
			return fmt.Errorf("%w: duplicate %s", ErrInvalidFleet, ship.Kind)
		}
		seenKinds[ship.Kind] = true

		if len(ship.Cells) != ship.Kind.Length() {
			return fmt.Errorf("%w: %s must cover %d cells, got %d",
				ErrInvalidFleet, ship.Kind, ship.Kind.Length(), len(ship.Cells))
		}
		for _, c := range ship.Cells {
			if !c.InBounds(BoardSize) {
				return fmt.Errorf("%w: %s cell (%d,%d) is off the board", ErrInvalidFleet, ship.Kind, c.X, c.Y)
			}
			if other, taken := occupied[c]; taken {
				return fmt.Errorf("%w: %s overlaps %s at (%d,%d)", ErrInvalidFleet, ship.Kind, other, c.X, c.Y)
			}
			occupied[c] = ship.Kind
		}
		if !isStraightRun(ship.Cells) {
			return fmt.Errorf("%w: %s cells are not one straight contiguous line", ErrInvalidFleet, ship.Kind)
		}
	}

	// five distinct valid kinds means every canonical kind is present
	return nil
}

// IsValidFleet reports whether ValidateFleet accepts the fleet
func IsValidFleet(fleet Fleet) bool {
	return ValidateFleet(fleet) == nil
}

// isStraightRun reports whether cells share one row or column and cover a
// gapless span, in any order. Duplicates are rejected by the overlap check.
func isStraightRun(cells []Coord) bool {
	if len(cells) == 0 {
		return false
	}
	sameRow, sameCol := true, true
	minX, maxX := cells[0].X, cells[0].X
	minY, maxY := cells[0].Y, cells[0].Y
	for _, c := range cells[1:] {
		if c.Y != cells[0].Y {
			sameRow = false
		}
		if c.X != cells[0].X {
			sameCol = false
		}
		minX, maxX = min(minX, c.X), max(maxX, c.X)
		minY, maxY = min(minY, c.Y), max(maxY, c.Y)
	}

	switch {
	case sameRow:
		return maxX-minX == len(cells)-1
	case sameCol:
		return maxY-minY == len(cells)-1
	}
	return false
}

// NormalizeFleet returns a copy of a validated fleet with cells sorted along
// each ship's axis, ship ids filled from the kind and destroyed flags cleared.
func NormalizeFleet(fleet Fleet) Fleet {
	out := make(Fleet, len(fleet))
	for i, ship := range fleet {
		cells := make([]Coord, len(ship.Cells))
		copy(cells, ship.Cells)
		sort.Slice(cells, func(a, b int) bool {
			if cells[a].Y != cells[b].Y {
				return cells[a].Y < cells[b].Y
			}
			return cells[a].X < cells[b].X
		})

		id := ship.ID
		if id == "" {
			id = string(ship.Kind)
		}
		out[i] = Ship{ID: id, Kind: ship.Kind, Cells: cells}
	}
	return out
}

// CloneFleet returns a deep copy of the fleet
func CloneFleet(fleet Fleet) Fleet {
	if fleet == nil {
		return nil
	}
	out := make(Fleet, len(fleet))
	for i, ship := range fleet {
		out[i] = ship
		out[i].Cells = append([]Coord(nil), ship.Cells...)
	}
	return out
}
