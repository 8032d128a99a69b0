package service

import (
	"time"

	"github.com/wricardo/naval-duel/game/session"
)

// SessionSummary is the sanitized admin projection of a session. It never
// carries fleets or shot grids.
type SessionSummary struct {
	ID        string        `json:"id"`
	SeatCount int           `json:"seat_count"`
	Seats     []SeatSummary `json:"seats"`
	Phase     session.Phase `json:"phase"`
	Turn      string        `json:"turn,omitempty"`
	Winner    string        `json:"winner,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// SeatSummary is the public part of a seat
type SeatSummary struct {
	DisplayName string `json:"display_name"`
	Ready       bool   `json:"ready"`
}

// JoinResult is returned when a seat is taken through the admin surface
type JoinResult struct {
	SessionID  string          `json:"session_id"`
	SeatID     string          `json:"seat_id"`
	IdentityID string          `json:"identity_id"`
	Session    *SessionSummary `json:"session"`
}

// SweepReport counts the sessions one sweep removed
type SweepReport struct {
	EmptyRemoved    int `json:"empty_removed"`
	FinishedRemoved int `json:"finished_removed"`
	InactiveRemoved int `json:"inactive_removed"`
	Total           int `json:"total_removed"`
	Remaining       int `json:"remaining"`
}

// Stats summarises the live server
type Stats struct {
	Sessions      int                   `json:"sessions"`
	Seats         int                   `json:"seats"`
	ByPhase       map[session.Phase]int `json:"by_phase"`
	Connections   int                   `json:"connections"`
	Authenticated int                   `json:"authenticated"`
}

func summarize(s *session.Session) *SessionSummary {
	summary := &SessionSummary{
		ID:        s.ID,
		SeatCount: len(s.Seats),
		Seats:     make([]SeatSummary, 0, len(s.Seats)),
		Phase:     s.Phase,
		Turn:      s.Turn,
		Winner:    s.Winner,
		CreatedAt: s.CreatedAt,
	}
	for _, seat := range s.Seats {
		summary.Seats = append(summary.Seats, SeatSummary{
			DisplayName: seat.DisplayName,
			Ready:       seat.Ready,
		})
	}
	return summary
}
