package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	leads "leadflow/internal/leads/domain"
	leadsrepo "leadflow/internal/leads/repository"
	"leadflow/internal/nurture/repository"
	"leadflow/internal/scheduler"
	"leadflow/platform/apperr"

	"github.com/google/uuid"
)

// ScheduledStep is one step queued by an enrollment.
type ScheduledStep struct {
	StepNumber int
	Delay      time.Duration
	Queued     bool
}

// Enrollment reports what EnrollInNurture did.
type Enrollment struct {
	SequenceID uuid.UUID
	Skipped    bool
	Reason     string
	Steps      []ScheduledStep
}

// EnrollNurtureJob runs a queued enrollment. A missing lead or sequence
// will not appear on retry, so those fail without retrying.
func (s *Service) EnrollNurtureJob(ctx context.Context, job scheduler.EnrollNurtureJobData) error {
	teamID, leadID, sequenceID, err := parseIDs(job.TeamID, job.LeadID, job.SequenceID)
	if err != nil {
		return scheduler.NonRetryable(err)
	}
	_, err = s.EnrollInNurture(ctx, teamID, leadID, sequenceID, job.EnrolledBy)
	if apperr.Is(err, apperr.KindNotFound) {
		return scheduler.NonRetryable(err)
	}
	return err
}

// EnrollInNurture queues every step of the sequence at its cumulative
// delay. Leads outside content_nurture are skipped without error.
func (s *Service) EnrollInNurture(ctx context.Context, teamID, leadID, sequenceID uuid.UUID, enrolledBy string) (Enrollment, error) {
	result := Enrollment{SequenceID: sequenceID}

	lead, err := s.leads.GetByID(ctx, teamID, leadID)
	if errors.Is(err, leadsrepo.ErrNotFound) {
		return result, apperr.NotFound("lead not found").WithOp("nurture.EnrollInNurture")
	}
	if err != nil {
		return result, fmt.Errorf("load lead %s: %w", leadID, err)
	}
	if lead.State != leads.StateContentNurture {
		s.log.Info("nurture enrollment skipped", "leadId", leadID, "sequenceId", sequenceID, "state", lead.State)
		result.Skipped = true
		result.Reason = fmt.Sprintf("lead is %s, not %s", lead.State, leads.StateContentNurture)
		return result, nil
	}

	seq, err := s.sequences.GetByID(ctx, teamID, sequenceID)
	if errors.Is(err, repository.ErrNotFound) {
		return result, apperr.NotFound("nurture sequence not found").WithOp("nurture.EnrollInNurture")
	}
	if err != nil {
		return result, fmt.Errorf("load sequence %s: %w", sequenceID, err)
	}

	var cumulative time.Duration
	for i, step := range seq.Steps {
		if step.StepNumber <= 0 {
			step.StepNumber = i + 1
		}
		cumulative += time.Duration(step.DelayMs) * time.Millisecond

		job := scheduler.ExecuteNurtureStepJobData{
			TeamID:     teamID.String(),
			LeadID:     leadID.String(),
			SequenceID: sequenceID.String(),
			StepNumber: step.StepNumber,
			Step:       stepPayload(step),
		}
		queued, err := s.queue.Enqueue(ctx, scheduler.TaskExecuteNurtureStep, job, scheduler.EnqueueOptions{
			Delay:    cumulative,
			UniqueID: scheduler.NurtureStepJobID(job.LeadID, job.SequenceID, step.StepNumber),
		})
		if err != nil {
			return result, fmt.Errorf("schedule step %d of sequence %s: %w", step.StepNumber, sequenceID, err)
		}
		result.Steps = append(result.Steps, ScheduledStep{StepNumber: step.StepNumber, Delay: cumulative, Queued: queued})
	}

	if _, err := s.events.RecordEvent(ctx, leads.LeadEvent{
		TeamID:      teamID,
		LeadID:      leadID,
		EventType:   leads.EventNurtureEnrolled,
		EventSource: leads.SourceNurture,
		Payload: map[string]any{
			"sequenceId":   sequenceID.String(),
			"sequenceName": seq.Name,
			"enrolledBy":   enrolledBy,
			"stepCount":    len(seq.Steps),
		},
	}); err != nil {
		s.log.Warn("record nurture enrollment", "leadId", leadID, "sequenceId", sequenceID, "error", err)
	}

	s.log.Info("lead enrolled in nurture", "leadId", leadID, "teamId", teamID, "sequenceId", sequenceID, "steps", len(result.Steps))
	return result, nil
}

func stepPayload(step repository.Step) scheduler.NurtureStepPayload {
	return scheduler.NurtureStepPayload{
		StepNumber:      step.StepNumber,
		Channel:         string(normalizeChannel(step.Channel)),
		TemplateID:      step.TemplateID,
		TemplateContent: step.TemplateContent,
		Subject:         step.Subject,
		DelayMs:         step.DelayMs,
		MediaURL:        step.MediaURL,
		LinkURL:         step.LinkURL,
	}
}
