package protocol

import (
	"time"

	"github.com/wricardo/naval-duel/game/engine"
	"github.com/wricardo/naval-duel/game/session"
)

// SessionView is the snapshot of a session as one seat may see it
type SessionView struct {
	ID        string        `json:"id"`
	Phase     session.Phase `json:"phase"`
	Turn      string        `json:"turn,omitempty"`
	Winner    string        `json:"winner,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	Seats     []SeatView    `json:"seats"`
}

type SeatView struct {
	ID             string          `json:"id"`
	DisplayName    string          `json:"display_name"`
	Ready          bool            `json:"ready"`
	Connected      bool            `json:"connected"`
	Placed         bool            `json:"placed"`
	ShipsRemaining int             `json:"ships_remaining"`
	Fleet          []ShipView      `json:"fleet"`
	Shots          engine.ShotGrid `json:"shots"`
}

// ShipView omits Cells for opponent ships still afloat
type ShipView struct {
	ID        string          `json:"id"`
	Kind      engine.ShipKind `json:"kind"`
	Cells     []engine.Coord  `json:"cells,omitempty"`
	Destroyed bool            `json:"destroyed"`
}

// NewSessionView builds the snapshot for viewerSeatID. The viewer sees its
// own ship positions in full. Opponent ships show kind and destroyed state,
// with cells only once destroyed. Shot grids are visible to both seats. An
// empty viewer sees no positions at all.
func NewSessionView(s *session.Session, viewerSeatID string) SessionView {
	view := SessionView{
		ID:        s.ID,
		Phase:     s.Phase,
		Turn:      s.Turn,
		Winner:    s.Winner,
		CreatedAt: s.CreatedAt,
		Seats:     make([]SeatView, 0, len(s.Seats)),
	}

	for _, seat := range s.Seats {
		own := viewerSeatID != "" && seat.ID == viewerSeatID
		sv := SeatView{
			ID:             seat.ID,
			DisplayName:    seat.DisplayName,
			Ready:          seat.Ready,
			Connected:      seat.Connected,
			Placed:         len(seat.Fleet) > 0,
			ShipsRemaining: seat.Fleet.Remaining(),
			Fleet:          make([]ShipView, 0, len(seat.Fleet)),
			Shots:          engine.CloneGrid(seat.Shots),
		}
		for _, ship := range seat.Fleet {
			shipView := ShipView{ID: ship.ID, Kind: ship.Kind, Destroyed: ship.Destroyed}
			if own || ship.Destroyed {
				shipView.Cells = append([]engine.Coord(nil), ship.Cells...)
			}
			sv.Fleet = append(sv.Fleet, shipView)
		}
		view.Seats = append(view.Seats, sv)
	}
	return view
}
