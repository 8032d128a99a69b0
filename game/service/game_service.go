package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wricardo/naval-duel/game/protocol"
	"github.com/wricardo/naval-duel/game/session"
)

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrNotFound               = errors.New("not found")
	ErrPrecondition           = errors.New("precondition failed")
	ErrInvalidCredential      = errors.New("invalid credential")

	// ErrInvalidInput marks malformed payload values. It is a precondition
	// failure.
	ErrInvalidInput = fmt.Errorf("%w: invalid input", ErrPrecondition)
)

// GameService defines the administrative operations over the registry
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context) (*SessionSummary, error)
	GetSession(ctx context.Context, sessionID string) (*SessionSummary, error)
	ListSessions(ctx context.Context, opts session.ListOptions) ([]*SessionSummary, error)
	JoinSession(ctx context.Context, sessionID, token, displayName string) (*JoinResult, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Reclamation
	Sweep(ctx context.Context, th session.Thresholds) SweepReport

	Stats(ctx context.Context) Stats
}

// ConnectionHandler is the surface a transport drives for each client
type ConnectionHandler interface {
	Connect(emitter Emitter) *Conn
	Handle(c *Conn, msg protocol.Inbound)
	Disconnect(c *Conn)
}

// Verifier turns a credential artifact into an identity
type Verifier interface {
	Verify(token string) (string, error)
}

// Emitter delivers events to one client. Emit must not block.
type Emitter interface {
	Emit(ev protocol.Event)
}

// Scheduler runs deferred work on behalf of the service. Callbacks are
// invoked on their own goroutine, never from inside the scheduling call.
type Scheduler interface {
	TriggerVacateSweep()
	After(d time.Duration, fn func()) (cancel func() bool)
}
