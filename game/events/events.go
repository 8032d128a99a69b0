// Package events publishes session lifecycle notifications.
//
// The game service reports sessions being created, started, finished,
// deleted and reclaimed. With a NATS URL configured each notification is
// published as JSON on "<prefix>.<type>", otherwise they are dropped.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Type names a lifecycle transition
type Type string

const (
	SessionCreated   Type = "created"
	SessionStarted   Type = "started"
	SessionFinished  Type = "finished"
	SessionDeleted   Type = "deleted"
	SessionReclaimed Type = "reclaimed"
)

// Lifecycle is one session lifecycle notification
type Lifecycle struct {
	Type      Type      `json:"type"`
	SessionID string    `json:"session_id"`
	Seats     int       `json:"seats"`
	Winner    string    `json:"winner,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher delivers lifecycle notifications
type Publisher interface {
	Publish(ev Lifecycle) error
	Close() error
}

// NopPublisher discards every notification
type NopPublisher struct{}

func (NopPublisher) Publish(Lifecycle) error { return nil }
func (NopPublisher) Close() error            { return nil }

// NATSPublisher publishes notifications on core NATS subjects
type NATSPublisher struct {
	conn    *nats.Conn
	prefix  string
	publish func(subject string, data []byte) error
	logger  *zap.Logger
}

// NewNATSPublisher connects to url and publishes under the subject prefix
func NewNATSPublisher(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	logger = logger.Named("events")

	conn, err := nats.Connect(
		url,
		nats.Name("naval-duel"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	p := newPublisher(prefix, conn.Publish, logger)
	p.conn = conn
	return p, nil
}

func newPublisher(prefix string, publish func(string, []byte) error, logger *zap.Logger) *NATSPublisher {
	return &NATSPublisher{
		prefix:  prefix,
		publish: publish,
		logger:  logger,
	}
}

// Subject returns the subject a notification of type t is published on
func (p *NATSPublisher) Subject(t Type) string {
	return p.prefix + "." + string(t)
}

// Publish sends ev without waiting for delivery
func (p *NATSPublisher) Publish(ev Lifecycle) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", ev.Type, err)
	}
	if err := p.publish(p.Subject(ev.Type), data); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", ev.Type, err)
	}
	p.logger.Debug("published lifecycle event",
		zap.String("type", string(ev.Type)),
		zap.String("session_id", ev.SessionID))
	return nil
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
