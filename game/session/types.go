package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/naval-duel/game/engine"
)

// Phase is the coarse state of a session
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseSetup    Phase = "setup"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"

	// MaxSeats is the number of players in a session
	MaxSeats = 2
)

// Valid reports whether p is a known phase
func (p Phase) Valid() bool {
	switch p {
	case PhaseWaiting, PhaseSetup, PhasePlaying, PhaseFinished:
		return true
	}
	return false
}

// Seat is one identity's participation in a session
type Seat struct {
	ID          string
	IdentityID  string
	DisplayName string
	Ready       bool
	Fleet       engine.Fleet
	Shots       engine.ShotGrid
	JoinedAt    time.Time
	Connected   bool
}

// NewSeat creates a connected seat with a fresh id and an empty shot grid
func NewSeat(identityID, displayName string, joinedAt time.Time) *Seat {
	return &Seat{
		ID:          uuid.NewString(),
		IdentityID:  identityID,
		DisplayName: displayName,
		Shots:       engine.NewShotGrid(engine.BoardSize),
		JoinedAt:    joinedAt,
		Connected:   true,
	}
}

// ResetGame clears everything that refers to the current opponent
func (s *Seat) ResetGame() {
	s.Ready = false
	s.Fleet = nil
	s.Shots = engine.NewShotGrid(engine.BoardSize)
}

// Session is a single two-player game
type Session struct {
	ID        string
	Seats     []*Seat
	Turn      string
	Phase     Phase
	Winner    string
	CreatedAt time.Time
}

// SeatCount returns the number of occupied seats
func (s *Session) SeatCount() int {
	return len(s.Seats)
}

// IsFull reports whether no more seats can be added
func (s *Session) IsFull() bool {
	return len(s.Seats) >= MaxSeats
}

// Seat returns the seat with the given id, or nil
func (s *Session) Seat(seatID string) *Seat {
	for _, seat := range s.Seats {
		if seat.ID == seatID {
			return seat
		}
	}
	return nil
}

// SeatFor returns the seat owned by the identity, or nil
func (s *Session) SeatFor(identityID string) *Seat {
	for _, seat := range s.Seats {
		if seat.IdentityID == identityID {
			return seat
		}
	}
	return nil
}

// Opponent returns the seat other than seatID, or nil
func (s *Session) Opponent(seatID string) *Seat {
	for _, seat := range s.Seats {
		if seat.ID != seatID {
			return seat
		}
	}
	return nil
}

// Restart returns the session to setup with both grids, fleets and ready
// flags cleared. A lone seat goes back to waiting instead.
func (s *Session) Restart() {
	for _, seat := range s.Seats {
		seat.ResetGame()
	}
	s.Turn = ""
	s.Winner = ""
	if len(s.Seats) == MaxSeats {
		s.Phase = PhaseSetup
	} else {
		s.Phase = PhaseWaiting
	}
}
