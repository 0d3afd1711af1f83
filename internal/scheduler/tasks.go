package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"leadflow/platform/validator"

	"github.com/hibiken/asynq"
)

// Job names. They are persisted with delayed jobs and must stay stable.
const (
	TaskProcessEvent           = "lead.event.process"
	TaskExecuteTrigger         = "trigger.execute"
	TaskCheckNoResponse        = "lead.no_response.check"
	TaskEnrollNurture          = "nurture.enroll"
	TaskExecuteNurtureStep     = "nurture.step.execute"
	TaskCheckNurtureEscalation = "nurture.escalation.check"
)

// ProcessEventJobData asks the trigger matcher to react to one lifecycle event.
type ProcessEventJobData struct {
	TeamID    string         `json:"teamId" validate:"required,uuid"`
	LeadID    string         `json:"leadId" validate:"required,uuid"`
	EventID   string         `json:"eventId,omitempty" validate:"omitempty,uuid"`
	EventType string         `json:"eventType" validate:"required"`
	EventData map[string]any `json:"eventData,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ExecuteTriggerJobData is one trigger firing.
type ExecuteTriggerJobData struct {
	TriggerID string         `json:"triggerId" validate:"required,uuid"`
	TeamID    string         `json:"teamId" validate:"required,uuid"`
	LeadID    string         `json:"leadId" validate:"required,uuid"`
	EventType string         `json:"eventType" validate:"required"`
	EventData map[string]any `json:"eventData,omitempty"`
	FiredAt   time.Time      `json:"firedAt"`
}

// CheckNoResponseJobData asks whether a lead stayed silent after an outbound message.
type CheckNoResponseJobData struct {
	TeamID              string    `json:"teamId" validate:"required,uuid"`
	LeadID              string    `json:"leadId" validate:"required,uuid"`
	DaysThreshold       int       `json:"daysThreshold" validate:"required,gt=0"`
	LastOutboundAt      time.Time `json:"lastOutboundAt" validate:"required"`
	LastOutboundEventID string    `json:"lastOutboundEventId,omitempty" validate:"omitempty,uuid"`
}

// EnrollNurtureJobData queues an enrollment.
type EnrollNurtureJobData struct {
	TeamID     string `json:"teamId" validate:"required,uuid"`
	LeadID     string `json:"leadId" validate:"required,uuid"`
	SequenceID string `json:"sequenceId" validate:"required,uuid"`
	EnrolledBy string `json:"enrolledBy"`
}

// NurtureStepPayload is the step definition captured at enrollment time.
type NurtureStepPayload struct {
	StepNumber      int    `json:"stepNumber" validate:"gte=1"`
	Channel         string `json:"channel" validate:"required,oneof=sms mms email"`
	TemplateID      string `json:"templateId,omitempty"`
	TemplateContent string `json:"templateContent"`
	Subject         string `json:"subject,omitempty"`
	DelayMs         int64  `json:"delayMs" validate:"gte=0"`
	MediaURL        string `json:"mediaUrl,omitempty"`
	LinkURL         string `json:"linkUrl,omitempty"`
}

// ExecuteNurtureStepJobData fires one scheduled nurture step.
type ExecuteNurtureStepJobData struct {
	TeamID     string             `json:"teamId" validate:"required,uuid"`
	LeadID     string             `json:"leadId" validate:"required,uuid"`
	SequenceID string             `json:"sequenceId" validate:"required,uuid"`
	StepNumber int                `json:"stepNumber" validate:"gte=1"`
	Step       NurtureStepPayload `json:"step"`
}

// CheckNurtureEscalationJobData looks for a reply after a nurture step.
type CheckNurtureEscalationJobData struct {
	TeamID     string `json:"teamId" validate:"required,uuid"`
	LeadID     string `json:"leadId" validate:"required,uuid"`
	SequenceID string `json:"sequenceId" validate:"required,uuid"`
	StepNumber int    `json:"stepNumber"`
}

var payloadValidator = validator.New()

// NewTask encodes payload as JSON under name.
func NewTask(name string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", name, err)
	}
	return asynq.NewTask(name, data), nil
}

// parsePayload decodes and validates a task payload. Malformed payloads are
// wrapped with asynq.SkipRetry since no retry can fix them.
func parsePayload[T any](task *asynq.Task) (T, error) {
	var payload T
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	if err := payloadValidator.Struct(payload); err != nil {
		return payload, fmt.Errorf("%s: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	return payload, nil
}

func ParseProcessEventPayload(task *asynq.Task) (ProcessEventJobData, error) {
	return parsePayload[ProcessEventJobData](task)
}

func ParseExecuteTriggerPayload(task *asynq.Task) (ExecuteTriggerJobData, error) {
	return parsePayload[ExecuteTriggerJobData](task)
}

func ParseCheckNoResponsePayload(task *asynq.Task) (CheckNoResponseJobData, error) {
	return parsePayload[CheckNoResponseJobData](task)
}

func ParseEnrollNurturePayload(task *asynq.Task) (EnrollNurtureJobData, error) {
	return parsePayload[EnrollNurtureJobData](task)
}

func ParseExecuteNurtureStepPayload(task *asynq.Task) (ExecuteNurtureStepJobData, error) {
	return parsePayload[ExecuteNurtureStepJobData](task)
}

func ParseCheckNurtureEscalationPayload(task *asynq.Task) (CheckNurtureEscalationJobData, error) {
	return parsePayload[CheckNurtureEscalationJobData](task)
}

// Job identities. Scoped to the logical operation, not the physical job.

func TriggerJobID(triggerID, leadID string, at time.Time) string {
	return fmt.Sprintf("trigger:%s:%s:%d", triggerID, leadID, at.UnixMilli())
}

func NurtureStepJobID(leadID, sequenceID string, stepNumber int) string {
	return fmt.Sprintf("nurture:%s:%s:%d", leadID, sequenceID, stepNumber)
}

func NurtureEscalationJobID(leadID string, stepNumber int) string {
	return fmt.Sprintf("nurture-escalation:%s:%d", leadID, stepNumber)
}

func NoResponseJobID(leadID string, days int, lastOutbound time.Time) string {
	return fmt.Sprintf("no-response:%s:%d:%d", leadID, days, lastOutbound.Unix())
}

// NonRetryable marks err so the queue sends the job straight to the
// dead-letter path instead of retrying it.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
}
