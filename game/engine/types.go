package engine

import "fmt"

// ShipKind identifies one of the canonical ship classes
type ShipKind string

const (
	Carrier    ShipKind = "carrier"
	Battleship ShipKind = "battleship"
	Cruiser    ShipKind = "cruiser"
	Submarine  ShipKind = "submarine"
	Destroyer  ShipKind = "destroyer"

	// BoardSize is the fixed gameplay board dimension
	BoardSize = 10
	// FleetSize is the number of ships in a complete fleet
	FleetSize = 5
)

// CanonicalKinds lists the fleet composition in descending length order
var CanonicalKinds = []ShipKind{Carrier, Battleship, Cruiser, Submarine, Destroyer}

// Length returns the number of cells a ship of this kind covers, or 0 for
// an unknown kind
func (k ShipKind) Length() int {
	switch k {
	case Carrier:
		return 5
	case Battleship:
		return 4
	case Cruiser, Submarine:
		return 3
	case Destroyer:
		return 2
	}
	return 0
}

// Valid reports whether k is one of the canonical kinds
func (k ShipKind) Valid() bool {
	return k.Length() > 0
}

// Coord is a zero-based board coordinate
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// InBounds reports whether the coordinate lies on a board of the given size
func (c Coord) InBounds(size int) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < size && c.Y < size
}

// Ship is a single placed ship
type Ship struct {
	ID        string   `json:"id"`
	Kind      ShipKind `json:"kind"`
	Cells     []Coord  `json:"cells"`
	Destroyed bool     `json:"destroyed"`
}

// Occupies reports whether the ship covers the coordinate
func (s *Ship) Occupies(c Coord) bool {
	for _, cell := range s.Cells {
		if cell == c {
			return true
		}
	}
	return false
}

// Fleet is the set of ships owned by one seat
type Fleet []Ship

// AllDestroyed reports whether every ship in a non-empty fleet is destroyed
func (f Fleet) AllDestroyed() bool {
	if len(f) == 0 {
		return false
	}
	for i := range f {
		if !f[i].Destroyed {
			return false
		}
	}
	return true
}

// Remaining returns the number of ships not yet destroyed
func (f Fleet) Remaining() int {
	n := 0
	for i := range f {
		if !f[i].Destroyed {
			n++
		}
	}
	return n
}

// ShotState is the outcome recorded for a single shot grid cell
type ShotState uint8

const (
	Untried ShotState = iota
	Hit
	Miss
)

// String returns the single-character board symbol for the state
func (s ShotState) String() string {
	switch s {
	case Hit:
		return "X"
	case Miss:
		return "O"
	}
	return "~"
}

// MarshalText encodes the state by name
func (s ShotState) MarshalText() ([]byte, error) {
	switch s {
	case Hit:
		return []byte("hit"), nil
	case Miss:
		return []byte("miss"), nil
	}
	return []byte("untried"), nil
}

// UnmarshalText decodes a state name
func (s *ShotState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "hit":
		*s = Hit
	case "miss":
		*s = Miss
	case "untried", "":
		*s = Untried
	default:
		return fmt.Errorf("unknown shot state %q", text)
	}
	return nil
}

// ShotGrid records the shots one seat fired, indexed [y][x]
type ShotGrid [][]ShotState

// At returns the state at c, or Untried when c is off the grid
func (g ShotGrid) At(c Coord) ShotState {
	if c.Y < 0 || c.Y >= len(g) || c.X < 0 || c.X >= len(g[c.Y]) {
		return Untried
	}
	return g[c.Y][c.X]
}

// Count returns how many cells hold the given state
func (g ShotGrid) Count(state ShotState) int {
	n := 0
	for _, row := range g {
		for _, cell := range row {
			if cell == state {
				n++
			}
		}
	}
	return n
}

// ShotResult describes the outcome of an accepted shot
type ShotResult struct {
	Hit           bool     `json:"hit"`
	ShipDestroyed bool     `json:"ship_destroyed"`
	SunkKind      ShipKind `json:"sunk_kind,omitempty"`
	AllDestroyed  bool     `json:"all_destroyed"`
}
