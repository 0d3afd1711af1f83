package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType names a lifecycle event.
type EventType string

const (
	EventLeadCreated          EventType = "LEAD_CREATED"
	EventSMSSent              EventType = "SMS_SENT"
	EventMMSSent              EventType = "MMS_SENT"
	EventEmailSent            EventType = "EMAIL_SENT"
	EventSMSReceived          EventType = "SMS_RECEIVED"
	EventEmailReceived        EventType = "EMAIL_RECEIVED"
	EventEmailCaptured        EventType = "EMAIL_CAPTURED"
	EventHighIntentDetected   EventType = "HIGH_INTENT_DETECTED"
	EventSoftInterestDetected EventType = "SOFT_INTEREST_DETECTED"
	EventObjectionDetected    EventType = "OBJECTION_DETECTED"
	EventOptOut               EventType = "OPT_OUT"
	EventTimer7D              EventType = "TIMER_7D"
	EventTimer14D             EventType = "TIMER_14D"
	EventStageChanged         EventType = "STAGE_CHANGED"
	EventContentSent          EventType = "CONTENT_SENT"
	EventAppointmentBooked    EventType = "APPOINTMENT_BOOKED"
	EventCallQueued           EventType = "CALL_QUEUED"
	EventLeadClosed           EventType = "LEAD_CLOSED"
	EventNurtureEnrolled      EventType = "NURTURE_ENROLLED"
	EventEscalationRequested  EventType = "ESCALATION_REQUESTED"
)

var knownEventTypes = map[EventType]struct{}{
	EventLeadCreated: {}, EventSMSSent: {}, EventMMSSent: {}, EventEmailSent: {},
	EventSMSReceived: {}, EventEmailReceived: {}, EventEmailCaptured: {},
	EventHighIntentDetected: {}, EventSoftInterestDetected: {}, EventObjectionDetected: {},
	EventOptOut: {}, EventTimer7D: {}, EventTimer14D: {}, EventStageChanged: {},
	EventContentSent: {}, EventAppointmentBooked: {}, EventCallQueued: {},
	EventLeadClosed: {}, EventNurtureEnrolled: {}, EventEscalationRequested: {},
}

// ParseEventType accepts any casing and returns the canonical type.
func ParseEventType(s string) (EventType, bool) {
	et := EventType(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := knownEventTypes[et]
	return et, ok
}

// IsOutbound reports whether the event records a message sent to the lead.
func (e EventType) IsOutbound() bool {
	switch e {
	case EventSMSSent, EventMMSSent, EventEmailSent, EventContentSent:
		return true
	}
	return false
}

// IsInbound reports whether the event records a reply from the lead.
func (e EventType) IsInbound() bool {
	return e == EventSMSReceived || e == EventEmailReceived
}

// Event sources used for attribution.
const (
	SourceSystem           = "system"
	SourceTimer            = "timer"
	SourceTrigger          = "trigger"
	SourceNurture          = "nurture"
	SourceInbound          = "inbound"
	SourceAIClassification = "ai_classification"
	SourceOperator         = "operator"
)

// LeadEvent is one immutable entry in a lead's history.
type LeadEvent struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	TeamID        uuid.UUID
	LeadID        uuid.UUID
	EventType     EventType
	EventSource   string
	PreviousState *LeadState
	NewState      *LeadState
	Payload       map[string]any
	DedupeKey     string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// Payload keys consulted for a natural key, in order.
var naturalKeyFields = []string{"providerMessageId", "messageId", "naturalKey"}

// NaturalKey extracts the idempotency key carried by a payload, or "".
func NaturalKey(payload map[string]any) string {
	for _, field := range naturalKeyFields {
		raw, ok := payload[field]
		if !ok || raw == nil {
			continue
		}
		var value string
		switch v := raw.(type) {
		case string:
			value = v
		case fmt.Stringer:
			value = v.String()
		case float64:
			value = strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			value = strconv.Itoa(v)
		case int64:
			value = strconv.FormatInt(v, 10)
		default:
			value = fmt.Sprint(v)
		}
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}

// DedupeKey builds the unique key for an event. Without a natural key the
// creation time qualifies the key so distinct events never collapse.
func DedupeKey(leadID uuid.UUID, eventType EventType, payload map[string]any, createdAt time.Time) string {
	natural := NaturalKey(payload)
	if natural == "" {
		natural = "t" + strconv.FormatInt(createdAt.UnixNano(), 10)
	}
	return fmt.Sprintf("%s:%s:%s", leadID, eventType, natural)
}
