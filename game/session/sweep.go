package session

import "time"

// Thresholds are the age limits applied by Sweep
type Thresholds struct {
	EmptyRoom    time.Duration `json:"empty_timeout"`
	FinishedGame time.Duration `json:"finished_timeout"`
	InactiveRoom time.Duration `json:"inactive_timeout"`
}

// DefaultThresholds returns the standard reclamation limits
func DefaultThresholds() Thresholds {
	return Thresholds{
		EmptyRoom:    30 * time.Minute,
		FinishedGame: 60 * time.Minute,
		InactiveRoom: 120 * time.Minute,
	}
}

// SweepResult reports what a sweep removed
type SweepResult struct {
	EmptyRemoved    int
	FinishedRemoved int
	InactiveRemoved int
	Remaining       int
	Removed         []*Session
}

// Total returns the number of sessions removed
func (r SweepResult) Total() int {
	return r.EmptyRemoved + r.FinishedRemoved + r.InactiveRemoved
}

// Sweep deletes abandoned sessions. Each session is checked against the
// rules in order and counted under the first one it matches:
//
//  1. finished and older than FinishedGame
//  2. waiting or setup with no seats and older than InactiveRoom
//  3. no seats, not finished, and older than EmptyRoom
//
// Playing sessions are never removed.
func (m *Manager) Sweep(th Thresholds) SweepResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var result SweepResult

	for _, id := range append([]string(nil), m.order...) {
		s := m.sessions[id]
		if s.Phase == PhasePlaying {
			continue
		}

		age := now.Sub(s.CreatedAt)
		empty := len(s.Seats) == 0

		switch {
		case s.Phase == PhaseFinished && age >= th.FinishedGame:
			result.FinishedRemoved++
		case (s.Phase == PhaseWaiting || s.Phase == PhaseSetup) && empty && age >= th.InactiveRoom:
			result.InactiveRemoved++
		case empty && s.Phase != PhaseFinished && age >= th.EmptyRoom:
			result.EmptyRemoved++
		default:
			continue
		}

		m.deleteLocked(id)
		result.Removed = append(result.Removed, s)
	}

	result.Remaining = len(m.sessions)
	return result
}
