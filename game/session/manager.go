package session

import (
	"crypto/rand"
	"errors"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFull     = errors.New("session is full")
	ErrSeatExists      = errors.New("seat already present")
	ErrSeatNotFound    = errors.New("seat not found")
)

const (
	codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength  = 6
)

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the time source used for creation timestamps and sweeps
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithIDGenerator overrides session code generation
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		m.newID = gen
	}
}

// Manager is the authoritative in-memory session registry
type Manager struct {
	sessions map[string]*Session
	order    []string // insertion order
	now      func() time.Time
	newID    func() string
	mu       sync.RWMutex
}

// NewManager creates an empty registry
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		now:      time.Now,
		newID:    GenerateCode,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Now returns the registry clock's current time
func (m *Manager) Now() time.Time {
	return m.now()
}

// Create allocates a new empty session in the waiting phase
func (m *Manager) Create() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := strings.ToUpper(m.newID())
	for m.taken(id) {
		id = strings.ToUpper(m.newID())
	}

	s := &Session{
		ID:        id,
		Phase:     PhaseWaiting,
		CreatedAt: m.now(),
	}
	m.sessions[id] = s
	m.order = append(m.order, id)
	return s
}

func (m *Manager) taken(id string) bool {
	_, exists := m.sessions[id]
	return exists || id == ""
}

// Get retrieves a session by code, case-insensitively
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[strings.ToUpper(id)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// AddSeat seats a player. Filling the second seat of a waiting session moves
// it to setup.
func (m *Manager) AddSeat(id string, seat *Seat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[strings.ToUpper(id)]
	if !ok {
		return ErrSessionNotFound
	}
	if s.IsFull() {
		return ErrSessionFull
	}
	if s.Seat(seat.ID) != nil {
		return ErrSeatExists
	}

	s.Seats = append(s.Seats, seat)
	if len(s.Seats) == MaxSeats && s.Phase == PhaseWaiting {
		s.Phase = PhaseSetup
	}
	return nil
}

// RemoveSeat removes a player. Any session not already waiting falls back to
// waiting with turn and winner cleared, and the remaining seat loses its
// ready flag, fleet and shots.
func (m *Manager) RemoveSeat(id, seatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[strings.ToUpper(id)]
	if !ok {
		return ErrSessionNotFound
	}

	idx := -1
	for i, seat := range s.Seats {
		if seat.ID == seatID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrSeatNotFound
	}

	s.Seats = append(s.Seats[:idx], s.Seats[idx+1:]...)

	if s.Phase != PhaseWaiting {
		s.Phase = PhaseWaiting
		s.Turn = ""
		s.Winner = ""
		for _, remaining := range s.Seats {
			remaining.ResetGame()
		}
	}
	return nil
}

// Delete removes a session from the registry
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id = strings.ToUpper(id)
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	m.deleteLocked(id)
	return nil
}

func (m *Manager) deleteLocked(id string) {
	delete(m.sessions, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Count returns the number of sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SortKey selects the List ordering
type SortKey string

const (
	SortNone    SortKey = ""
	SortCreated SortKey = "created"
	SortSeats   SortKey = "seats"
)

// ListOptions filters and orders List results. The zero value lists every
// session in insertion order.
type ListOptions struct {
	Phase       Phase
	ExcludeFull bool
	MaxSeats    *int
	Sort        SortKey
	Descending  bool
}

// List returns the sessions matching opts
func (m *Manager) List(opts ListOptions) []*Session {
	m.mu.RLock()
	result := make([]*Session, 0, len(m.order))
	for _, id := range m.order {
		s := m.sessions[id]
		if opts.Phase != "" && s.Phase != opts.Phase {
			continue
		}
		if opts.ExcludeFull && s.IsFull() {
			continue
		}
		if opts.MaxSeats != nil && len(s.Seats) > *opts.MaxSeats {
			continue
		}
		result = append(result, s)
	}
	m.mu.RUnlock()

	var less func(a, b *Session) bool
	switch opts.Sort {
	case SortCreated:
		less = func(a, b *Session) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortSeats:
		less = func(a, b *Session) bool { return len(a.Seats) < len(b.Seats) }
	default:
		return result
	}

	sort.SliceStable(result, func(i, j int) bool {
		if opts.Descending {
			return less(result[j], result[i])
		}
		return less(result[i], result[j])
	})
	return result
}

// Stats summarises the registry
type Stats struct {
	Sessions int           `json:"sessions"`
	Seats    int           `json:"seats"`
	ByPhase  map[Phase]int `json:"by_phase"`
}

// Stats counts sessions per phase and occupied seats
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Sessions: len(m.sessions),
		ByPhase: map[Phase]int{
			PhaseWaiting:  0,
			PhaseSetup:    0,
			PhasePlaying:  0,
			PhaseFinished: 0,
		},
	}
	for _, s := range m.sessions {
		stats.Seats += len(s.Seats)
		stats.ByPhase[s.Phase]++
	}
	return stats
}

// GenerateCode returns a random 6-character upper-case session code
func GenerateCode() string {
	code := make([]byte, codeLength)
	limit := big.NewInt(int64(len(codeCharset)))
	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic("session: crypto/rand unavailable: " + err.Error())
		}
		code[i] = codeCharset[n.Int64()]
	}
	return string(code)
}
