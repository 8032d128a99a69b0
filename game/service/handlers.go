package service

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wricardo/naval-duel/game/engine"
	"github.com/wricardo/naval-duel/game/events"
	"github.com/wricardo/naval-duel/game/identity"
	"github.com/wricardo/naval-duel/game/protocol"
	"github.com/wricardo/naval-duel/game/session"
)

type joinInput struct {
	SessionID   string `json:"session_id" validate:"required"`
	DisplayName string `json:"display_name" validate:"required,max=32"`
}

type chatInput struct {
	Text string `json:"text" validate:"required,max=500"`
}

func (s *Service) authenticate(c *Conn, m protocol.Authenticate, out *outbox) error {
	identityID, err := s.verifier.Verify(m.Token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if c.identity != "" && c.identity != identityID {
		return fmt.Errorf("%w: connection is already authenticated as another identity", ErrPrecondition)
	}

	if previous := s.bindings.Bind(identityID, c.id); previous != "" {
		if old, ok := s.conns[previous]; ok {
			old.identity = ""
			out.send(old, protocol.Superseded{})
			s.logger.Info("connection superseded",
				zap.String("identity", identityID),
				zap.String("old_conn_id", previous),
				zap.String("conn_id", c.id))
		}
	}
	c.identity = identityID
	out.send(c, protocol.Authenticated{IdentityID: identityID})

	s.cancelExpiry(identityID)

	sess, seat, ok := s.seatOf(identityID)
	if !ok {
		return nil
	}
	seat.Connected = true
	out.send(c, protocol.Rejoined{SeatID: seat.ID, Session: protocol.NewSessionView(sess, seat.ID)})
	if opponent := sess.Opponent(seat.ID); opponent != nil {
		out.send(s.connFor(opponent.IdentityID), protocol.OpponentRejoined{
			SeatID:  seat.ID,
			Session: protocol.NewSessionView(sess, opponent.ID),
		})
	}
	s.logger.Info("seat resumed",
		zap.String("identity", identityID),
		zap.String("session_id", sess.ID),
		zap.String("seat_id", seat.ID))
	return nil
}

func (s *Service) join(c *Conn, m protocol.JoinSession, out *outbox) error {
	identityID, err := s.requireIdentity(c)
	if err != nil {
		return err
	}
	_, _, err = s.joinSeat(identityID, m.SessionID, m.DisplayName, out)
	return err
}

// joinSeat seats identityID in sessionID, or resumes the seat it already
// holds there. Holding a seat in a different session is a precondition
// failure unless that game is finished, in which case the old seat is
// released first.
func (s *Service) joinSeat(identityID, sessionID, displayName string, out *outbox) (*session.Session, *session.Seat, error) {
	input := joinInput{SessionID: strings.TrimSpace(sessionID), DisplayName: strings.TrimSpace(displayName)}
	if err := s.validateInput(input); err != nil {
		return nil, nil, err
	}

	sess, err := s.sessions.Get(input.SessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: session %s", ErrNotFound, input.SessionID)
	}

	conn := s.connFor(identityID)

	if current, seat, ok := s.seatOf(identityID); ok {
		if current.ID == sess.ID {
			seat.Connected = conn != nil
			out.send(conn, protocol.Joined{SeatID: seat.ID, Session: protocol.NewSessionView(sess, seat.ID)})
			return sess, seat, nil
		}
		// A finished game no longer holds its players
		if current.Phase != session.PhaseFinished {
			return nil, nil, fmt.Errorf("%w: already seated in session %s", ErrPrecondition, current.ID)
		}
		if sess.IsFull() {
			return nil, nil, fmt.Errorf("%w: could not join: %v", ErrPrecondition, session.ErrSessionFull)
		}
		if err := s.releaseSeat(current, seat, conn, out); err != nil {
			return nil, nil, err
		}
	}

	seat := session.NewSeat(identityID, input.DisplayName, s.sessions.Now())
	seat.Connected = conn != nil
	if err := s.sessions.AddSeat(sess.ID, seat); err != nil {
		return nil, nil, fmt.Errorf("%w: could not join: %v", ErrPrecondition, err)
	}
	s.bindings.SetSeat(identityID, identity.Assignment{SessionID: sess.ID, SeatID: seat.ID})

	out.send(conn, protocol.Joined{SeatID: seat.ID, Session: protocol.NewSessionView(sess, seat.ID)})
	if opponent := sess.Opponent(seat.ID); opponent != nil {
		out.send(s.connFor(opponent.IdentityID), protocol.PlayerJoined{
			SeatID:  seat.ID,
			Session: protocol.NewSessionView(sess, opponent.ID),
		})
	}

	s.logger.Info("seat joined",
		zap.String("identity", identityID),
		zap.String("session_id", sess.ID),
		zap.String("seat_id", seat.ID),
		zap.String("phase", string(sess.Phase)))
	return sess, seat, nil
}

func (s *Service) leave(c *Conn, out *outbox) error {
	identityID, err := s.requireIdentity(c)
	if err != nil {
		return err
	}
	sess, seat, ok := s.seatOf(identityID)
	if !ok {
		return nil
	}

	return s.releaseSeat(sess, seat, c, out)
}

// releaseSeat removes seat from sess, confirms to c and tells the remaining
// member
func (s *Service) releaseSeat(sess *session.Session, seat *session.Seat, c *Conn, out *outbox) error {
	if err := s.removeSeat(sess, seat); err != nil {
		return err
	}
	out.send(c, protocol.Left{SessionID: sess.ID})
	s.broadcast(sess, out, func(viewer *session.Seat) protocol.Event {
		return protocol.PlayerLeft{SeatID: seat.ID, Session: protocol.NewSessionView(sess, viewer.ID)}
	})
	return nil
}

// removeSeat takes seat out of sess and forgets the identity's assignment
func (s *Service) removeSeat(sess *session.Session, seat *session.Seat) error {
	if err := s.sessions.RemoveSeat(sess.ID, seat.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	s.bindings.ClearSeat(seat.IdentityID)
	s.cancelExpiry(seat.IdentityID)

	s.logger.Info("seat removed",
		zap.String("identity", seat.IdentityID),
		zap.String("session_id", sess.ID),
		zap.String("seat_id", seat.ID),
		zap.String("phase", string(sess.Phase)))
	return nil
}

// seated resolves the caller's seat, failing when it has none
func (s *Service) seated(c *Conn) (*session.Session, *session.Seat, error) {
	identityID, err := s.requireIdentity(c)
	if err != nil {
		return nil, nil, err
	}
	sess, seat, ok := s.seatOf(identityID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: not seated in a session", ErrPrecondition)
	}
	return sess, seat, nil
}

func (s *Service) submitFleet(c *Conn, m protocol.SubmitFleet, out *outbox) error {
	sess, seat, err := s.seated(c)
	if err != nil {
		return err
	}
	if sess.Phase != session.PhaseSetup {
		return fmt.Errorf("%w: fleets can only be placed during setup", ErrPrecondition)
	}

	fleet := m.Fleet()
	if err := engine.ValidateFleet(fleet); err != nil {
		return fmt.Errorf("%w: %v", ErrPrecondition, err)
	}

	seat.Fleet = engine.NormalizeFleet(fleet)
	seat.Ready = false

	out.send(c, protocol.FleetAccepted{Session: protocol.NewSessionView(sess, seat.ID)})
	if opponent := sess.Opponent(seat.ID); opponent != nil {
		out.send(s.connFor(opponent.IdentityID), protocol.OpponentPlaced{SeatID: seat.ID})
	}
	return nil
}

func (s *Service) markReady(c *Conn, out *outbox) error {
	identityID, err := s.requireIdentity(c)
	if err != nil {
		return err
	}
	sess, seat, ok := s.seatOf(identityID)
	if !ok {
		return nil
	}
	if sess.Phase != session.PhaseSetup {
		return fmt.Errorf("%w: ready can only be marked during setup", ErrPrecondition)
	}

	seat.Ready = true

	if !readyToStart(sess) {
		s.broadcast(sess, out, func(viewer *session.Seat) protocol.Event {
			return protocol.ReadyStatus{SeatID: seat.ID, Session: protocol.NewSessionView(sess, viewer.ID)}
		})
		return nil
	}

	sess.Phase = session.PhasePlaying
	sess.Turn = sess.Seats[0].ID
	s.broadcast(sess, out, func(viewer *session.Seat) protocol.Event {
		return protocol.GameStarted{Turn: sess.Turn, Session: protocol.NewSessionView(sess, viewer.ID)}
	})
	out.publish(s.lifecycle(events.SessionStarted, sess, ""))

	s.logger.Info("game started",
		zap.String("session_id", sess.ID),
		zap.String("turn", sess.Turn))
	return nil
}

func readyToStart(sess *session.Session) bool {
	if len(sess.Seats) != session.MaxSeats {
		return false
	}
	for _, seat := range sess.Seats {
		if !seat.Ready || len(seat.Fleet) == 0 {
			return false
		}
	}
	return true
}

func (s *Service) fireShot(c *Conn, m protocol.FireShot, out *outbox) error {
	sess, seat, err := s.seated(c)
	if err != nil {
		return err
	}
	if sess.Phase != session.PhasePlaying {
		return fmt.Errorf("%w: game is not in progress", ErrPrecondition)
	}
	if sess.Turn != seat.ID {
		return fmt.Errorf("%w: not your turn", ErrPrecondition)
	}
	opponent := sess.Opponent(seat.ID)
	if opponent == nil {
		return fmt.Errorf("%w: no opponent", ErrPrecondition)
	}

	result, err := engine.ResolveShot(opponent.Fleet, seat.Shots, m.X, m.Y)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPrecondition, err)
	}

	if result.AllDestroyed {
		sess.Phase = session.PhaseFinished
		sess.Winner = seat.ID
		sess.Turn = ""
		out.publish(s.lifecycle(events.SessionFinished, sess, ""))
		s.logger.Info("game finished",
			zap.String("session_id", sess.ID),
			zap.String("winner", seat.ID))
	} else {
		sess.Turn = opponent.ID
	}

	s.broadcast(sess, out, func(viewer *session.Seat) protocol.Event {
		return protocol.ShotResult{
			SeatID:        seat.ID,
			X:             m.X,
			Y:             m.Y,
			Hit:           result.Hit,
			ShipDestroyed: result.ShipDestroyed,
			SunkKind:      result.SunkKind,
			AllDestroyed:  result.AllDestroyed,
			NextTurn:      sess.Turn,
			Winner:        sess.Winner,
			Session:       protocol.NewSessionView(sess, viewer.ID),
		}
	})
	return nil
}

func (s *Service) chat(c *Conn, m protocol.Chat, out *outbox) error {
	identityID, err := s.requireIdentity(c)
	if err != nil {
		return err
	}
	sess, seat, ok := s.seatOf(identityID)
	if !ok {
		return nil
	}

	input := chatInput{Text: strings.TrimSpace(m.Text)}
	if err := s.validateInput(input); err != nil {
		return err
	}

	msg := protocol.ChatMessage{
		SeatID:      seat.ID,
		DisplayName: seat.DisplayName,
		Text:        input.Text,
		Timestamp:   s.sessions.Now(),
	}
	s.broadcast(sess, out, func(*session.Seat) protocol.Event {
		return msg
	})
	return nil
}

func (s *Service) restart(c *Conn, out *outbox) error {
	identityID, err := s.requireIdentity(c)
	if err != nil {
		return err
	}
	sess, _, ok := s.seatOf(identityID)
	if !ok {
		return nil
	}

	sess.Restart()
	s.broadcast(sess, out, func(viewer *session.Seat) protocol.Event {
		return protocol.GameRestarted{Session: protocol.NewSessionView(sess, viewer.ID)}
	})
	s.logger.Info("game restarted",
		zap.String("session_id", sess.ID),
		zap.String("phase", string(sess.Phase)))
	return nil
}

func (s *Service) disconnect(c *Conn, out *outbox) {
	delete(s.conns, c.id)

	identityID := c.identity
	if identityID == "" {
		return
	}
	c.identity = ""

	// a superseded connection no longer owns the identity
	if !s.bindings.Unbind(identityID, c.id) {
		return
	}

	sess, seat, ok := s.seatOf(identityID)
	if !ok {
		return
	}

	if s.grace > 0 && s.scheduler != nil {
		s.holdSeat(sess, seat, out)
		return
	}
	s.vacate(sess, seat, out)
}

// holdSeat keeps a disconnected seat for the grace period
func (s *Service) holdSeat(sess *session.Session, seat *session.Seat, out *outbox) {
	seat.Connected = false
	deadline := s.sessions.Now().Add(s.grace)

	s.cancelExpiry(seat.IdentityID)
	p := &pendingExpiry{seatID: seat.ID}
	identityID := seat.IdentityID
	p.cancel = s.scheduler.After(s.grace, func() {
		s.expire(identityID, p)
	})
	s.pending[identityID] = p

	if opponent := sess.Opponent(seat.ID); opponent != nil {
		view := protocol.NewSessionView(sess, opponent.ID)
		out.send(s.connFor(opponent.IdentityID), protocol.OpponentDisconnected{
			SeatID:   seat.ID,
			Deadline: &deadline,
			Session:  &view,
		})
	}
	s.logger.Info("seat held for reconnect",
		zap.String("identity", identityID),
		zap.String("session_id", sess.ID),
		zap.Duration("grace", s.grace))
}

// expire removes a held seat whose identity did not come back in time
func (s *Service) expire(identityID string, p *pendingExpiry) {
	s.run(func(out *outbox) {
		if s.pending[identityID] != p {
			return
		}
		delete(s.pending, identityID)

		if s.connFor(identityID) != nil {
			return
		}
		sess, seat, ok := s.seatOf(identityID)
		if !ok || seat.ID != p.seatID {
			return
		}
		s.vacate(sess, seat, out)
	})
}

// vacate removes a seat whose connection is gone and notifies the opponent
func (s *Service) vacate(sess *session.Session, seat *session.Seat, out *outbox) {
	if err := s.removeSeat(sess, seat); err != nil {
		s.logger.Warn("failed to vacate seat", zap.String("session_id", sess.ID), zap.Error(err))
		return
	}
	s.broadcast(sess, out, func(viewer *session.Seat) protocol.Event {
		view := protocol.NewSessionView(sess, viewer.ID)
		return protocol.OpponentDisconnected{SeatID: seat.ID, Session: &view}
	})
	out.vacated = true
}
