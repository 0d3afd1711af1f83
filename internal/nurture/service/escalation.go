package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	leads "leadflow/internal/leads/domain"
	leadsrepo "leadflow/internal/leads/repository"
	"leadflow/internal/nurture/repository"
	"leadflow/internal/scheduler"

	"github.com/google/uuid"
)

// recentEventWindow bounds how far back the escalation check looks.
const recentEventWindow = 20

type EscalationOutcome string

const (
	EscalationNone      EscalationOutcome = "none"
	EscalationAdvanced  EscalationOutcome = "advanced"
	EscalationRequested EscalationOutcome = "requested"
)

func (s *Service) CheckNurtureEscalationJob(ctx context.Context, job scheduler.CheckNurtureEscalationJobData) error {
	teamID, leadID, sequenceID, err := parseIDs(job.TeamID, job.LeadID, job.SequenceID)
	if err != nil {
		return scheduler.NonRetryable(err)
	}
	_, err = s.CheckForEscalation(ctx, teamID, leadID, sequenceID)
	return err
}

// CheckForEscalation looks for an inbound reply since the lead was enrolled
// in the sequence. A reply matching the sequence's keywords moves the lead
// to the configured target state; any other reply requests human review.
func (s *Service) CheckForEscalation(ctx context.Context, teamID, leadID, sequenceID uuid.UUID) (EscalationOutcome, error) {
	lead, err := s.leads.GetByID(ctx, teamID, leadID)
	if errors.Is(err, leadsrepo.ErrNotFound) {
		return EscalationNone, nil
	}
	if err != nil {
		return EscalationNone, fmt.Errorf("load lead %s: %w", leadID, err)
	}
	if lead.State.IsAdvanced() || lead.State.IsTerminal() {
		return EscalationNone, nil
	}

	recent, err := s.events.GetRecentEvents(ctx, teamID, leadID, recentEventWindow)
	if err != nil {
		return EscalationNone, fmt.Errorf("load recent events for lead %s: %w", leadID, err)
	}
	reply, ok := latestReplySinceEnrollment(recent, sequenceID)
	if !ok {
		return EscalationNone, nil
	}

	var trigger *repository.EscalationTrigger
	seq, err := s.sequences.GetByID(ctx, teamID, sequenceID)
	switch {
	case err == nil:
		trigger = seq.EscalationTrigger
	case errors.Is(err, repository.ErrNotFound):
		s.log.Warn("escalation check for unknown sequence", "sequenceId", sequenceID, "leadId", leadID)
	default:
		return EscalationNone, fmt.Errorf("load sequence %s: %w", sequenceID, err)
	}

	body, _ := reply.Payload["body"].(string)
	payload := map[string]any{
		"sequenceId":   sequenceID.String(),
		"replyEventId": reply.ID.String(),
		"naturalKey":   reply.ID.String(),
	}

	if keyword, matched := matchKeyword(body, trigger); matched {
		target := leads.StateHighIntent
		if parsed, ok := leads.ParseLeadState(trigger.TargetState); ok {
			target = parsed
		}
		payload["matchedKeyword"] = keyword
		_, err := s.events.RecordEvent(ctx, leads.LeadEvent{
			TeamID:      teamID,
			LeadID:      leadID,
			EventType:   leads.EventHighIntentDetected,
			EventSource: leads.SourceNurture,
			NewState:    target.Ptr(),
			Payload:     payload,
		})
		if err != nil {
			return EscalationNone, err
		}
		s.log.Info("nurture reply escalated", "leadId", leadID, "sequenceId", sequenceID, "targetState", target)
		return EscalationAdvanced, nil
	}

	payload["reason"] = "reply during nurture"
	if _, err := s.events.RecordEvent(ctx, leads.LeadEvent{
		TeamID:      teamID,
		LeadID:      leadID,
		EventType:   leads.EventEscalationRequested,
		EventSource: leads.SourceNurture,
		Payload:     payload,
	}); err != nil {
		return EscalationNone, err
	}
	s.log.Info("nurture reply flagged for review", "leadId", leadID, "sequenceId", sequenceID)
	return EscalationRequested, nil
}

// latestReplySinceEnrollment scans newest-first events and stops at the
// enrollment into sequenceID.
func latestReplySinceEnrollment(events []leads.LeadEvent, sequenceID uuid.UUID) (leads.LeadEvent, bool) {
	for _, ev := range events {
		if ev.EventType == leads.EventNurtureEnrolled {
			if id, _ := ev.Payload["sequenceId"].(string); id == sequenceID.String() {
				return leads.LeadEvent{}, false
			}
			continue
		}
		if ev.EventType.IsInbound() {
			return ev, true
		}
	}
	return leads.LeadEvent{}, false
}

func matchKeyword(body string, trigger *repository.EscalationTrigger) (string, bool) {
	if trigger == nil || body == "" {
		return "", false
	}
	lower := strings.ToLower(body)
	for _, kw := range trigger.ResponseKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}
