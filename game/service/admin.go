package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wricardo/naval-duel/game/events"
	"github.com/wricardo/naval-duel/game/protocol"
	"github.com/wricardo/naval-duel/game/session"
)

// CreateSession creates an empty session
func (s *Service) CreateSession(ctx context.Context) (*SessionSummary, error) {
	var summary *SessionSummary
	s.run(func(out *outbox) {
		sess := s.sessions.Create()
		summary = summarize(sess)
		out.publish(s.lifecycle(events.SessionCreated, sess, ""))
		s.logger.Info("session created", zap.String("session_id", sess.ID))
	})
	return summary, nil
}

// GetSession returns the sanitized projection of one session
func (s *Service) GetSession(ctx context.Context, sessionID string) (*SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	return summarize(sess), nil
}

// ListSessions returns sanitized projections filtered and ordered by opts
func (s *Service) ListSessions(ctx context.Context, opts session.ListOptions) ([]*SessionSummary, error) {
	if opts.Phase != "" && !opts.Phase.Valid() {
		return nil, fmt.Errorf("%w: unknown phase %q", ErrInvalidInput, opts.Phase)
	}
	switch opts.Sort {
	case session.SortNone, session.SortCreated, session.SortSeats:
	default:
		return nil, fmt.Errorf("%w: unknown sort key %q", ErrInvalidInput, opts.Sort)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.sessions.List(opts)
	result := make([]*SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, summarize(sess))
	}
	return result, nil
}

// JoinSession seats the token's identity without a live connection. The
// identity resumes the seat when it authenticates over a connection.
func (s *Service) JoinSession(ctx context.Context, sessionID, token, displayName string) (*JoinResult, error) {
	identityID, err := s.verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	var (
		result  *JoinResult
		joinErr error
	)
	s.run(func(out *outbox) {
		sess, seat, err := s.joinSeat(identityID, sessionID, displayName, out)
		if err != nil {
			joinErr = err
			return
		}
		result = &JoinResult{
			SessionID:  sess.ID,
			SeatID:     seat.ID,
			IdentityID: identityID,
			Session:    summarize(sess),
		}
	})
	return result, joinErr
}

// DeleteSession removes a session unless a two-seat game is in progress
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	var err error
	s.run(func(out *outbox) {
		sess, getErr := s.sessions.Get(sessionID)
		if getErr != nil {
			err = fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
			return
		}
		if sess.Phase == session.PhasePlaying && len(sess.Seats) == session.MaxSeats {
			err = fmt.Errorf("%w: session %s has a game in progress", ErrPrecondition, sess.ID)
			return
		}
		if delErr := s.sessions.Delete(sess.ID); delErr != nil {
			err = fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
			return
		}
		s.closeSession(sess, "deleted", out)
		out.publish(s.lifecycle(events.SessionDeleted, sess, "deleted"))
		s.logger.Info("session deleted", zap.String("session_id", sess.ID))
	})
	return err
}

// Sweep runs one reclamation pass and tells any remaining members their
// session is gone
func (s *Service) Sweep(ctx context.Context, th session.Thresholds) SweepReport {
	var result session.SweepResult
	s.run(func(out *outbox) {
		result = s.sessions.Sweep(th)
		for _, sess := range result.Removed {
			s.closeSession(sess, "reclaimed", out)
			out.publish(s.lifecycle(events.SessionReclaimed, sess, "reclaimed"))
		}
	})

	report := SweepReport{
		EmptyRemoved:    result.EmptyRemoved,
		FinishedRemoved: result.FinishedRemoved,
		InactiveRemoved: result.InactiveRemoved,
		Total:           result.Total(),
		Remaining:       result.Remaining,
	}
	if report.Total > 0 {
		s.logger.Info("sweep removed sessions",
			zap.Int("empty", report.EmptyRemoved),
			zap.Int("finished", report.FinishedRemoved),
			zap.Int("inactive", report.InactiveRemoved),
			zap.Int("remaining", report.Remaining))
	}
	return report
}

// closeSession drops every identity assignment into a removed session
func (s *Service) closeSession(sess *session.Session, reason string, out *outbox) {
	for _, seat := range sess.Seats {
		out.send(s.connFor(seat.IdentityID), protocol.SessionClosed{SessionID: sess.ID, Reason: reason})
		s.cancelExpiry(seat.IdentityID)
	}
	s.bindings.ClearSession(sess.ID)
}

// Stats summarises sessions and connections
func (s *Service) Stats(ctx context.Context) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	registry := s.sessions.Stats()
	return Stats{
		Sessions:      registry.Sessions,
		Seats:         registry.Seats,
		ByPhase:       registry.ByPhase,
		Connections:   len(s.conns),
		Authenticated: s.bindings.Connections(),
	}
}

var (
	_ GameService       = (*Service)(nil)
	_ ConnectionHandler = (*Service)(nil)
)
