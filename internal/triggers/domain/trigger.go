// Package domain holds the trigger catalog, the event-to-trigger mapping
// and the per-type firing predicates.
package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	leads "leadflow/internal/leads/domain"

	"github.com/google/uuid"
)

type TriggerType string

const (
	TypeNoResponse        TriggerType = "no_response"
	TypeStageChanged      TriggerType = "stage_changed"
	TypePositiveSentiment TriggerType = "positive_sentiment"
	TypeNegativeSentiment TriggerType = "negative_sentiment"
	TypeLeadResponded     TriggerType = "lead_responded"
	TypeMeetingBooked     TriggerType = "meeting_booked"
)

const (
	DefaultDaysWithoutResponse = 7
	DefaultMinConfidence       = 70
)

// Trigger is a team-configured automation rule. The core only reads it,
// apart from the firing statistics.
type Trigger struct {
	ID           uuid.UUID
	TeamID       uuid.UUID
	Type         TriggerType
	Enabled      bool
	Config       Config
	TemplateID   *uuid.UUID
	TemplateName string
	FiredCount   int
	LastFiredAt  *time.Time
}

// Config holds the type-specific thresholds plus action settings.
type Config struct {
	DaysWithoutResponse int    `json:"daysWithoutResponse,omitempty"`
	TargetStage         string `json:"targetStage,omitempty"`
	MinConfidence       int    `json:"minConfidence,omitempty"`
	Channel             string `json:"channel,omitempty"`
	Subject             string `json:"subject,omitempty"`
}

// ParseConfig decodes stored JSON config; an empty document yields defaults.
func ParseConfig(raw []byte) (Config, error) {
	var cfg Config
	if len(raw) == 0 {
		return cfg, nil
	}
	err := json.Unmarshal(raw, &cfg)
	return cfg, err
}

// TriggerTypeForEvent maps a lifecycle event to the trigger type it can
// fire. ok is false for events no trigger reacts to.
func TriggerTypeForEvent(eventType leads.EventType, payload map[string]any) (TriggerType, bool) {
	switch eventType {
	case leads.EventTimer7D, leads.EventTimer14D:
		return TypeNoResponse, true
	case leads.EventStageChanged:
		return TypeStageChanged, true
	case leads.EventSMSReceived, leads.EventEmailReceived:
		switch strings.ToLower(stringField(payload, "sentiment")) {
		case "positive":
			return TypePositiveSentiment, true
		case "negative":
			return TypeNegativeSentiment, true
		}
		return TypeLeadResponded, true
	case leads.EventAppointmentBooked:
		return TypeMeetingBooked, true
	}
	return "", false
}

// ShouldFire evaluates the trigger's predicate against the event payload.
// Unknown trigger types always fire.
func (t Trigger) ShouldFire(payload map[string]any) bool {
	switch t.Type {
	case TypeNoResponse:
		threshold := t.Config.DaysWithoutResponse
		if threshold <= 0 {
			threshold = DefaultDaysWithoutResponse
		}
		days, ok := numberField(payload, "daysWithoutResponse")
		return ok && days >= float64(threshold)

	case TypeStageChanged:
		return t.Config.TargetStage != "" && stringField(payload, "newState") == t.Config.TargetStage

	case TypePositiveSentiment, TypeNegativeSentiment:
		minConfidence := t.Config.MinConfidence
		if minConfidence <= 0 {
			minConfidence = DefaultMinConfidence
		}
		confidence, ok := numberField(payload, "confidence")
		return ok && confidence >= float64(minConfidence)

	case TypeLeadResponded, TypeMeetingBooked:
		return true
	}
	return true
}

func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func numberField(payload map[string]any, key string) (float64, bool) {
	switch v := payload[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}
