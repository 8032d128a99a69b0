package engine

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"strconv"
	"text/tabwriter"
)

// NewShotGrid allocates an all-untried square grid of the given size
func NewShotGrid(size int) ShotGrid {
	if size < 0 {
		size = 0
	}
	grid := make(ShotGrid, size)
	for y := range grid {
		grid[y] = make([]ShotState, size)
	}
	return grid
}

// CloneGrid returns a deep copy of the grid
func CloneGrid(grid ShotGrid) ShotGrid {
	if grid == nil {
		return nil
	}
	out := make(ShotGrid, len(grid))
	for y, row := range grid {
		out[y] = append([]ShotState(nil), row...)
	}
	return out
}

// RenderGrid renders a shot grid with row and column numbers
func RenderGrid(grid ShotGrid) string {
	return render(len(grid), func(c Coord) string {
		return grid.At(c).String()
	})
}

// RenderFleet renders a fleet on a BoardSize board. Ship cells are shown by
// the first letter of the kind, upper case when the ship is destroyed.
func RenderFleet(fleet Fleet) string {
	return render(BoardSize, func(c Coord) string {
		for i := range fleet {
			if !fleet[i].Occupies(c) {
				continue
			}
			symbol := string(fleet[i].Kind)[:1]
			if fleet[i].Destroyed {
				return string(symbol[0] - 'a' + 'A')
			}
			return symbol
		}
		return "~"
	})
}

func render(size int, cell func(Coord) string) string {
	if size == 0 {
		return "EMPTY BOARD\n"
	}

	var buffer bytes.Buffer
	w := tabwriter.NewWriter(&buffer, 3, 0, 1, ' ', 0)

	fmt.Fprint(w, "\t")
	for x := 0; x < size; x++ {
		fmt.Fprint(w, strconv.Itoa(x)+"\t")
	}
	fmt.Fprint(w, "\n")

	for y := 0; y < size; y++ {
		fmt.Fprint(w, strconv.Itoa(y)+"\t")
		for x := 0; x < size; x++ {
			fmt.Fprint(w, cell(Coord{X: x, Y: y})+"\t")
		}
		fmt.Fprint(w, "\n")
	}
	w.Flush()
	return buffer.String()
}

// RandomFleet places the canonical fleet at random non-overlapping positions
func RandomFleet(rng *rand.Rand) Fleet {
	for {
		if fleet, ok := tryRandomFleet(rng); ok {
			return fleet
		}
	}
}

func tryRandomFleet(rng *rand.Rand) (Fleet, bool) {
	occupied := make(map[Coord]bool)
	fleet := make(Fleet, 0, FleetSize)

	for _, kind := range CanonicalKinds {
		placed := false
		for attempt := 0; attempt < 100 && !placed; attempt++ {
			horizontal := rng.IntN(2) == 0
			length := kind.Length()
			maxX, maxY := BoardSize, BoardSize
			if horizontal {
				maxX = BoardSize - length + 1
			} else {
				maxY = BoardSize - length + 1
			}
			origin := Coord{X: rng.IntN(maxX), Y: rng.IntN(maxY)}

			cells := make([]Coord, length)
			free := true
			for i := range cells {
				c := origin
				if horizontal {
					c.X += i
				} else {
					c.Y += i
				}
				if occupied[c] {
					free = false
					break
				}
				cells[i] = c
			}
			if !free {
				continue
			}
			for _, c := range cells {
				occupied[c] = true
			}
			fleet = append(fleet, Ship{ID: string(kind), Kind: kind, Cells: cells})
			placed = true
		}
		if !placed {
			return nil, false
		}
	}
	return fleet, true
}
