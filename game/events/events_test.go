package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	subject string
	data    []byte
}

func TestNATSPublisher_Publish(t *testing.T) {
	var sent []published
	p := newPublisher("naval.sessions", func(subject string, data []byte) error {
		sent = append(sent, published{subject, data})
		return nil
	}, zap.NewNop())

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	err := p.Publish(Lifecycle{Type: SessionFinished, SessionID: "ABC123", Seats: 2, Winner: "seat-1", At: at})
	require.NoError(t, err)

	require.Len(t, sent, 1)
	assert.Equal(t, "naval.sessions.finished", sent[0].subject)

	var decoded Lifecycle
	require.NoError(t, json.Unmarshal(sent[0].data, &decoded))
	assert.Equal(t, SessionFinished, decoded.Type)
	assert.Equal(t, "ABC123", decoded.SessionID)
	assert.Equal(t, "seat-1", decoded.Winner)
	assert.True(t, at.Equal(decoded.At))
}

func TestNATSPublisher_PublishError(t *testing.T) {
	p := newPublisher("x", func(string, []byte) error {
		return errors.New("connection closed")
	}, zap.NewNop())

	err := p.Publish(Lifecycle{Type: SessionCreated})
	assert.ErrorContains(t, err, "connection closed")
	assert.NoError(t, p.Close())
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(Lifecycle{Type: SessionStarted}))
	assert.NoError(t, p.Close())
}
