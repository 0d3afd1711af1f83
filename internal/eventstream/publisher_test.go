package eventstream

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	leads "leadflow/internal/leads/domain"
	"leadflow/platform/config"
	"leadflow/platform/logger"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestEventRecordedPublishesEnvelope(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w, topic: "lead-events", log: logger.Discard()}

	prev, next := leads.StateTouched, leads.StateResponded
	ev := leads.LeadEvent{
		ID:            uuid.New(),
		TeamID:        uuid.New(),
		LeadID:        uuid.New(),
		EventType:     leads.EventSMSReceived,
		EventSource:   leads.SourceInbound,
		PreviousState: &prev,
		NewState:      &next,
		Payload:       map[string]any{"body": "sure"},
		CreatedAt:     time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.EventRecorded(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, ev.LeadID.String(), string(msg.Key))

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, "SMS_RECEIVED", env.EventType)
	require.NotNil(t, env.NewState)
	assert.Equal(t, "responded", *env.NewState)
	assert.Equal(t, "sure", env.Payload["body"])
}

func TestEventRecordedWrapsWriteError(t *testing.T) {
	p := &Publisher{writer: &fakeWriter{err: errors.New("broker down")}, topic: "lead-events", log: logger.Discard()}
	err := p.EventRecorded(context.Background(), leads.LeadEvent{ID: uuid.New(), EventType: leads.EventOptOut})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestNewPublisherDisabled(t *testing.T) {
	assert.Nil(t, NewPublisher(&config.Config{}, logger.Discard()))
}
