package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wricardo/naval-duel/game/events"
	"github.com/wricardo/naval-duel/game/identity"
	"github.com/wricardo/naval-duel/game/protocol"
	"github.com/wricardo/naval-duel/game/session"
)

// Conn is the per-connection context. It is created by Connect and dropped by
// Disconnect. identity is guarded by the service lock.
type Conn struct {
	id       string
	emitter  Emitter
	identity string
}

// ID returns the connection id
func (c *Conn) ID() string {
	return c.id
}

// Option configures a Service
type Option func(*Service)

// WithPublisher sends lifecycle notifications to p
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithReconnectGrace keeps a disconnected seat for d before removing it.
// Zero removes the seat as soon as the connection drops.
func WithReconnectGrace(d time.Duration) Option {
	return func(s *Service) {
		s.grace = d
	}
}

type pendingExpiry struct {
	seatID string
	cancel func() bool
}

// Service is the session protocol engine. Every action, disconnect, admin
// operation and sweep runs under mu, so handlers never interleave.
type Service struct {
	sessions  *session.Manager
	bindings  *identity.Bindings
	verifier  Verifier
	publisher events.Publisher
	scheduler Scheduler
	validate  *validator.Validate
	logger    *zap.Logger
	grace     time.Duration

	conns   map[string]*Conn
	pending map[string]*pendingExpiry // identity -> grace timer
	mu      sync.Mutex
}

// NewGameService creates a service over the given registry
func NewGameService(sessions *session.Manager, verifier Verifier, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		sessions:  sessions,
		bindings:  identity.NewBindings(),
		verifier:  verifier,
		publisher: events.NopPublisher{},
		validate:  newValidator(),
		logger:    logger.Named("service"),
		conns:     make(map[string]*Conn),
		pending:   make(map[string]*pendingExpiry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetScheduler attaches the scheduler used for vacate sweeps and reconnect
// grace timers
func (s *Service) SetScheduler(scheduler Scheduler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduler = scheduler
}

// outbox collects side effects produced under the lock so they can be
// delivered after it is released
type outbox struct {
	deliveries []delivery
	lifecycle  []events.Lifecycle
	vacated    bool
}

type delivery struct {
	conn  *Conn
	event protocol.Event
}

func (o *outbox) send(c *Conn, ev protocol.Event) {
	if c == nil {
		return
	}
	o.deliveries = append(o.deliveries, delivery{conn: c, event: ev})
}

func (o *outbox) publish(ev events.Lifecycle) {
	o.lifecycle = append(o.lifecycle, ev)
}

func (o *outbox) reset() {
	o.deliveries = nil
	o.lifecycle = nil
	o.vacated = false
}

func (s *Service) flush(out *outbox, scheduler Scheduler) {
	for _, d := range out.deliveries {
		d.conn.emitter.Emit(d.event)
	}
	for _, ev := range out.lifecycle {
		if err := s.publisher.Publish(ev); err != nil {
			s.logger.Warn("failed to publish lifecycle event",
				zap.String("type", string(ev.Type)),
				zap.String("session_id", ev.SessionID),
				zap.Error(err))
		}
	}
	if out.vacated && scheduler != nil {
		scheduler.TriggerVacateSweep()
	}
}

// run executes fn under the service lock and delivers its side effects
func (s *Service) run(fn func(out *outbox)) {
	out := &outbox{}
	s.mu.Lock()
	fn(out)
	scheduler := s.scheduler
	s.mu.Unlock()
	s.flush(out, scheduler)
}

// Connect registers a new unauthenticated connection
func (s *Service) Connect(emitter Emitter) *Conn {
	c := &Conn{id: uuid.NewString(), emitter: emitter}

	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()

	s.logger.Debug("connection opened", zap.String("conn_id", c.id))
	return c
}

// Handle processes one inbound action from c
func (s *Service) Handle(c *Conn, msg protocol.Inbound) {
	s.run(func(out *outbox) {
		s.dispatch(c, msg, out)
	})
}

// Disconnect tears down c. Disconnect is not an error and emits nothing to c.
func (s *Service) Disconnect(c *Conn) {
	s.run(func(out *outbox) {
		s.disconnect(c, out)
	})
	s.logger.Debug("connection closed", zap.String("conn_id", c.id))
}

func (s *Service) dispatch(c *Conn, msg protocol.Inbound, out *outbox) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while handling action",
				zap.String("conn_id", c.id),
				zap.String("action", msg.Action()),
				zap.Any("panic", r),
				zap.Stack("stack"))
			out.reset()
			out.send(c, protocol.Error{Kind: protocol.KindInternal, Message: "internal error"})
		}
	}()

	var err error
	switch m := msg.(type) {
	case protocol.Authenticate:
		err = s.authenticate(c, m, out)
	case protocol.JoinSession:
		err = s.join(c, m, out)
	case protocol.LeaveSession:
		err = s.leave(c, out)
	case protocol.SubmitFleet:
		err = s.submitFleet(c, m, out)
	case protocol.MarkReady:
		err = s.markReady(c, out)
	case protocol.FireShot:
		err = s.fireShot(c, m, out)
	case protocol.Chat:
		err = s.chat(c, m, out)
	case protocol.Restart:
		err = s.restart(c, out)
	default:
		err = fmt.Errorf("%w: unsupported action %q", ErrPrecondition, msg.Action())
	}

	if err != nil {
		s.logger.Debug("action rejected",
			zap.String("conn_id", c.id),
			zap.String("identity", c.identity),
			zap.String("action", msg.Action()),
			zap.Error(err))
		out.send(c, rejection(msg, err))
	}
}

// KindOf classifies err into the protocol error taxonomy
func KindOf(err error) protocol.ErrorKind {
	switch {
	case errors.Is(err, ErrAuthenticationRequired), errors.Is(err, ErrInvalidCredential):
		return protocol.KindAuthenticationRequired
	case errors.Is(err, ErrNotFound):
		return protocol.KindNotFound
	case errors.Is(err, ErrPrecondition):
		return protocol.KindPrecondition
	}
	return protocol.KindInternal
}

func rejection(msg protocol.Inbound, err error) protocol.Event {
	kind := KindOf(err)
	reason := err.Error()

	if errors.Is(err, ErrInvalidCredential) {
		return protocol.AuthFailed{Reason: reason}
	}
	if kind == protocol.KindPrecondition {
		switch msg.(type) {
		case protocol.SubmitFleet:
			return protocol.PlacementRejected{Reason: reason}
		case protocol.FireShot:
			return protocol.ShotRejected{Reason: reason}
		}
	}
	if kind == protocol.KindInternal {
		reason = "internal error"
	}
	return protocol.Error{Kind: kind, Message: reason}
}

func (s *Service) requireIdentity(c *Conn) (string, error) {
	if c.identity == "" {
		return "", ErrAuthenticationRequired
	}
	return c.identity, nil
}

// seatOf resolves the seat an identity holds. Stale assignments whose session
// or seat no longer exists are dropped.
func (s *Service) seatOf(identityID string) (*session.Session, *session.Seat, bool) {
	a, ok := s.bindings.Seat(identityID)
	if !ok {
		return nil, nil, false
	}
	sess, err := s.sessions.Get(a.SessionID)
	if err != nil {
		s.bindings.ClearSeat(identityID)
		return nil, nil, false
	}
	seat := sess.Seat(a.SeatID)
	if seat == nil {
		s.bindings.ClearSeat(identityID)
		return nil, nil, false
	}
	return sess, seat, true
}

// connFor returns the live connection bound to identityID, or nil
func (s *Service) connFor(identityID string) *Conn {
	connID, ok := s.bindings.Connection(identityID)
	if !ok {
		return nil
	}
	return s.conns[connID]
}

// broadcast sends each seated member its own rendering of an event
func (s *Service) broadcast(sess *session.Session, out *outbox, build func(viewer *session.Seat) protocol.Event) {
	for _, seat := range sess.Seats {
		out.send(s.connFor(seat.IdentityID), build(seat))
	}
}

func (s *Service) lifecycle(t events.Type, sess *session.Session, reason string) events.Lifecycle {
	return events.Lifecycle{
		Type:      t,
		SessionID: sess.ID,
		Seats:     len(sess.Seats),
		Winner:    sess.Winner,
		Reason:    reason,
		At:        s.sessions.Now(),
	}
}

func (s *Service) cancelExpiry(identityID string) {
	if p, ok := s.pending[identityID]; ok {
		p.cancel()
		delete(s.pending, identityID)
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Service) validateInput(v any) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
