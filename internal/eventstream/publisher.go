// Package eventstream publishes recorded lifecycle events to Kafka for
// downstream consumers.
package eventstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	leads "leadflow/internal/leads/domain"
	"leadflow/platform/config"
	"leadflow/platform/logger"

	"github.com/segmentio/kafka-go"
)

const writeTimeout = 5 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope is the wire shape of a published event.
type Envelope struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenantId"`
	TeamID        string         `json:"teamId"`
	LeadID        string         `json:"leadId"`
	EventType     string         `json:"eventType"`
	EventSource   string         `json:"eventSource"`
	PreviousState *string        `json:"previousState,omitempty"`
	NewState      *string        `json:"newState,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

type Publisher struct {
	writer messageWriter
	topic  string
	log    *logger.Logger
}

// NewPublisher returns nil when the stream is disabled.
func NewPublisher(cfg config.KafkaConfig, log *logger.Logger) *Publisher {
	if !cfg.IsKafkaEnabled() {
		return nil
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.GetKafkaBrokers()...),
		Topic:        cfg.GetKafkaEventTopic(),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &Publisher{writer: w, topic: cfg.GetKafkaEventTopic(), log: log}
}

// EventRecorded publishes ev keyed by lead id so a lead's events stay on
// one partition in order. Register it as an event log sink.
func (p *Publisher) EventRecorded(ctx context.Context, ev leads.LeadEvent) error {
	value, err := json.Marshal(toEnvelope(ev))
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(ev.LeadID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(ev.EventType)},
			{Key: "teamId", Value: []byte(ev.TeamID.String())},
		},
		Time: ev.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("publish event %s to %s: %w", ev.ID, p.topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func toEnvelope(ev leads.LeadEvent) Envelope {
	env := Envelope{
		ID:          ev.ID.String(),
		TenantID:    ev.TenantID.String(),
		TeamID:      ev.TeamID.String(),
		LeadID:      ev.LeadID.String(),
		EventType:   string(ev.EventType),
		EventSource: ev.EventSource,
		Payload:     ev.Payload,
		CreatedAt:   ev.CreatedAt.UTC(),
	}
	if ev.PreviousState != nil {
		s := string(*ev.PreviousState)
		env.PreviousState = &s
	}
	if ev.NewState != nil {
		s := string(*ev.NewState)
		env.NewState = &s
	}
	return env
}
