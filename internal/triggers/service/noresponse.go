package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	leads "leadflow/internal/leads/domain"
	leadsrepo "leadflow/internal/leads/repository"
	"leadflow/internal/scheduler"
)

// CheckNoResponseJob records a silence timer when the lead never answered
// the outbound message the job was queued for.
func (s *Service) CheckNoResponseJob(ctx context.Context, job scheduler.CheckNoResponseJobData) error {
	teamID, leadID, err := parseIDs(job.TeamID, job.LeadID)
	if err != nil {
		return scheduler.NonRetryable(err)
	}

	lead, err := s.leads.GetByID(ctx, teamID, leadID)
	if errors.Is(err, leadsrepo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load lead %s: %w", leadID, err)
	}
	switch lead.State {
	case leads.StateTouched, leads.StateRetargeting, leads.StateResponded:
	default:
		s.log.Debug("no-response check skipped", "leadId", leadID, "state", lead.State)
		return nil
	}

	since := job.LastOutboundAt
	replies, err := s.events.GetLeadEvents(ctx, teamID, leadID, leadsrepo.EventFilter{
		Types: []leads.EventType{leads.EventSMSReceived, leads.EventEmailReceived},
		Since: &since,
		Limit: 1,
	})
	if err != nil {
		return fmt.Errorf("load replies for lead %s: %w", leadID, err)
	}
	if len(replies) > 0 {
		s.log.Debug("lead replied, no timer recorded", "leadId", leadID)
		return nil
	}

	eventType := leads.EventTimer7D
	if job.DaysThreshold >= 14 {
		eventType = leads.EventTimer14D
	}
	naturalKey := job.LastOutboundEventID
	if naturalKey == "" {
		naturalKey = strconv.FormatInt(job.LastOutboundAt.Unix(), 10)
	}

	_, err = s.events.RecordEvent(ctx, leads.LeadEvent{
		TeamID:      teamID,
		LeadID:      leadID,
		EventType:   eventType,
		EventSource: leads.SourceTimer,
		Payload: map[string]any{
			"daysWithoutResponse": job.DaysThreshold,
			"lastOutboundAt":      job.LastOutboundAt,
			"naturalKey":          naturalKey,
		},
	})
	return err
}
