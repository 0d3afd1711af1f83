package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	leads "leadflow/internal/leads/domain"
	"leadflow/internal/scheduler"
	"leadflow/internal/triggers/domain"

	"github.com/google/uuid"
)

// QueueEvent hands a lifecycle event to the trigger pipeline.
func (s *Service) QueueEvent(ctx context.Context, teamID, leadID uuid.UUID, eventType leads.EventType, eventData map[string]any) error {
	job := scheduler.ProcessEventJobData{
		TeamID:    teamID.String(),
		LeadID:    leadID.String(),
		EventType: string(eventType),
		EventData: eventData,
		Timestamp: s.now().UTC(),
	}
	_, err := s.queue.Enqueue(ctx, scheduler.TaskProcessEvent, job, scheduler.EnqueueOptions{})
	return err
}

// EventRecorded queues trigger processing for a freshly stored event.
// Register it as an event log sink.
func (s *Service) EventRecorded(ctx context.Context, ev leads.LeadEvent) error {
	if _, ok := domain.TriggerTypeForEvent(ev.EventType, ev.Payload); !ok {
		return nil
	}

	data := make(map[string]any, len(ev.Payload)+1)
	for k, v := range ev.Payload {
		data[k] = v
	}
	if _, ok := data["newState"]; !ok && ev.NewState != nil {
		data["newState"] = string(*ev.NewState)
	}

	job := scheduler.ProcessEventJobData{
		TeamID:    ev.TeamID.String(),
		LeadID:    ev.LeadID.String(),
		EventID:   ev.ID.String(),
		EventType: string(ev.EventType),
		EventData: data,
		Timestamp: ev.CreatedAt,
	}
	_, err := s.queue.Enqueue(ctx, scheduler.TaskProcessEvent, job, scheduler.EnqueueOptions{
		UniqueID: "event:" + ev.ID.String(),
	})
	return err
}

// ProcessEventJob runs the matcher for one queued event.
func (s *Service) ProcessEventJob(ctx context.Context, job scheduler.ProcessEventJobData) error {
	teamID, leadID, err := parseIDs(job.TeamID, job.LeadID)
	if err != nil {
		return scheduler.NonRetryable(err)
	}

	if _, err := s.DispatchEvent(ctx, teamID, leadID, leads.EventType(job.EventType), job.EventData, job.Timestamp); err != nil {
		return err
	}

	if job.EventID != "" && s.marker != nil {
		eventID, err := uuid.Parse(job.EventID)
		if err == nil {
			err = s.marker.MarkEventProcessed(ctx, teamID, eventID)
		}
		if err != nil {
			s.log.Warn("mark event processed failed", "eventId", job.EventID, "error", err)
		}
	}
	return nil
}

// DispatchEvent finds enabled triggers matching the event, evaluates their
// predicates and enqueues one execution per passing trigger. The job
// identity includes at, so a later qualifying event fires again while a
// redelivered dispatch of the same event does not.
func (s *Service) DispatchEvent(ctx context.Context, teamID, leadID uuid.UUID, eventType leads.EventType, payload map[string]any, at time.Time) (int, error) {
	triggerType, ok := domain.TriggerTypeForEvent(eventType, payload)
	if !ok {
		s.log.Debug("event has no trigger mapping", "eventType", eventType, "leadId", leadID)
		return 0, nil
	}
	if at.IsZero() {
		at = s.now()
	}

	triggers, err := s.store.ListEnabled(ctx, teamID, triggerType)
	if err != nil {
		return 0, fmt.Errorf("list %s triggers: %w", triggerType, err)
	}

	queued := 0
	var errs []error
	for _, t := range triggers {
		if !t.ShouldFire(payload) {
			continue
		}
		job := scheduler.ExecuteTriggerJobData{
			TriggerID: t.ID.String(),
			TeamID:    teamID.String(),
			LeadID:    leadID.String(),
			EventType: string(eventType),
			EventData: payload,
			FiredAt:   at.UTC(),
		}
		ok, err := s.queue.Enqueue(ctx, scheduler.TaskExecuteTrigger, job, scheduler.EnqueueOptions{
			UniqueID: scheduler.TriggerJobID(job.TriggerID, job.LeadID, at),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("trigger %s: %w", t.ID, err))
			continue
		}
		if ok {
			queued++
		}
	}

	if queued > 0 {
		s.log.Info("triggers dispatched", "leadId", leadID, "teamId", teamID, "triggerType", triggerType, "count", queued)
	}
	return queued, errors.Join(errs...)
}

func parseIDs(teamRaw, leadRaw string) (uuid.UUID, uuid.UUID, error) {
	teamID, err := uuid.Parse(teamRaw)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid team id %q: %w", teamRaw, err)
	}
	leadID, err := uuid.Parse(leadRaw)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid lead id %q: %w", leadRaw, err)
	}
	return teamID, leadID, nil
}
