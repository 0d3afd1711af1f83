package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	leads "leadflow/internal/leads/domain"
	leadsrepo "leadflow/internal/leads/repository"
	"leadflow/internal/messaging"
	"leadflow/internal/scheduler"
	"leadflow/internal/templates"

	"github.com/google/uuid"
)

// ExecuteNurtureStepJob fires one scheduled step.
func (s *Service) ExecuteNurtureStepJob(ctx context.Context, job scheduler.ExecuteNurtureStepJobData) error {
	teamID, leadID, sequenceID, err := parseIDs(job.TeamID, job.LeadID, job.SequenceID)
	if err != nil {
		return scheduler.NonRetryable(err)
	}
	return s.ExecuteNurtureStep(ctx, teamID, leadID, sequenceID, job.StepNumber, job.Step)
}

// ExecuteNurtureStep sends a step if the lead is still in content_nurture.
// Otherwise it removes the sequence's later pending steps and sends nothing.
func (s *Service) ExecuteNurtureStep(ctx context.Context, teamID, leadID, sequenceID uuid.UUID, stepNumber int, step scheduler.NurtureStepPayload) error {
	log := s.log.WithContext(ctx)
	channel := normalizeChannel(step.Channel)

	lead, err := s.leads.GetByID(ctx, teamID, leadID)
	if errors.Is(err, leadsrepo.ErrNotFound) {
		log.Info("nurture step skipped, lead not found", "leadId", leadID, "sequenceId", sequenceID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load lead %s: %w", leadID, err)
	}

	if lead.State != leads.StateContentNurture {
		removed, err := s.cancelRemainingSteps(ctx, teamID, leadID, sequenceID, stepNumber)
		s.metrics.RecordNurtureStep(string(channel), "cancelled")
		log.Info("nurture sequence cancelled",
			"leadId", leadID,
			"sequenceId", sequenceID,
			"stepNumber", stepNumber,
			"state", lead.State,
			"removed", removed,
		)
		return err
	}

	msg, err := s.buildStepMessage(ctx, teamID, lead, channel, step)
	if errors.Is(err, errNoEmail) {
		log.Warn("nurture email step skipped, lead has no email", "leadId", leadID, "stepNumber", stepNumber)
		s.metrics.RecordNurtureStep(string(channel), "skipped")
		return nil
	}
	if err != nil {
		return err
	}

	result, err := s.transport.SendMessage(ctx, msg)
	if err != nil {
		s.metrics.RecordNurtureStep(string(channel), "failed")
		return fmt.Errorf("nurture step %d for lead %s: %w", stepNumber, leadID, err)
	}
	s.metrics.RecordNurtureStep(string(channel), "sent")

	payload := map[string]any{
		"sequenceId": sequenceID.String(),
		"stepNumber": stepNumber,
		"channel":    string(channel),
		"body":       msg.Body,
	}
	if result.ProviderMessageID != "" {
		payload["providerMessageId"] = result.ProviderMessageID
	} else {
		payload["naturalKey"] = fmt.Sprintf("nurture:%s:%d", sequenceID, stepNumber)
	}
	if _, err := s.events.RecordEvent(ctx, leads.LeadEvent{
		TeamID:      teamID,
		LeadID:      leadID,
		EventType:   sentEventType(channel),
		EventSource: leads.SourceNurture,
		Payload:     payload,
	}); err != nil {
		log.Warn("record nurture send event", "leadId", leadID, "stepNumber", stepNumber, "error", err)
	}

	escalation := scheduler.CheckNurtureEscalationJobData{
		TeamID:     teamID.String(),
		LeadID:     leadID.String(),
		SequenceID: sequenceID.String(),
		StepNumber: stepNumber,
	}
	if _, err := s.queue.Enqueue(ctx, scheduler.TaskCheckNurtureEscalation, escalation, scheduler.EnqueueOptions{
		Delay:    s.escalationDelay,
		UniqueID: scheduler.NurtureEscalationJobID(escalation.LeadID, stepNumber),
	}); err != nil {
		log.Warn("schedule nurture escalation check", "leadId", leadID, "stepNumber", stepNumber, "error", err)
	}

	log.Info("nurture step sent", "leadId", leadID, "sequenceId", sequenceID, "stepNumber", stepNumber, "channel", channel)
	return nil
}

var errNoEmail = errors.New("lead has no email address")

func (s *Service) buildStepMessage(ctx context.Context, teamID uuid.UUID, lead leadsrepo.Lead, channel messaging.Channel, step scheduler.NurtureStepPayload) (messaging.Message, error) {
	body, subject := step.TemplateContent, step.Subject
	if body == "" && step.TemplateID != "" {
		tmplID, err := uuid.Parse(step.TemplateID)
		if err != nil {
			return messaging.Message{}, scheduler.NonRetryable(fmt.Errorf("invalid template id %q: %w", step.TemplateID, err))
		}
		tmpl, err := s.templates.GetByID(ctx, teamID, tmplID)
		if err != nil {
			return messaging.Message{}, fmt.Errorf("load template %s: %w", tmplID, err)
		}
		body = tmpl.Body
		if subject == "" {
			subject = tmpl.Subject
		}
	}

	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return messaging.Message{}, fmt.Errorf("load team %s: %w", teamID, err)
	}

	fields := templates.Fields{
		FirstName: lead.FirstName,
		LastName:  lead.LastName,
		Company:   lead.Company,
		Link:      step.LinkURL,
	}
	if lead.Email != nil {
		fields.Email = *lead.Email
	}

	msg := messaging.Message{
		Channel: channel,
		Body:    templates.Personalize(body, fields),
	}
	switch channel {
	case messaging.ChannelEmail:
		if lead.Email == nil || *lead.Email == "" {
			return messaging.Message{}, errNoEmail
		}
		msg.To = *lead.Email
		msg.From = team.FromEmail
		msg.Subject = templates.Personalize(subject, fields)
	case messaging.ChannelMMS:
		msg.To = lead.Phone
		msg.From = team.FromPhone
		msg.MediaURL = step.MediaURL
	default:
		msg.To = lead.Phone
		msg.From = team.FromPhone
	}
	return msg, nil
}

// cancelRemainingSteps removes pending steps of the same enrollment with a
// higher step number. Steps already running are left alone.
func (s *Service) cancelRemainingSteps(ctx context.Context, teamID, leadID, sequenceID uuid.UUID, after int) (int, error) {
	jobs, err := s.queue.ListDelayed(ctx, scheduler.TaskExecuteNurtureStep)
	if err != nil {
		return 0, fmt.Errorf("list pending nurture steps: %w", err)
	}

	removed := 0
	var errs []error
	for _, job := range jobs {
		var data scheduler.ExecuteNurtureStepJobData
		if err := json.Unmarshal(job.Payload, &data); err != nil {
			continue
		}
		if data.TeamID != teamID.String() || data.LeadID != leadID.String() || data.SequenceID != sequenceID.String() {
			continue
		}
		if data.StepNumber <= after {
			continue
		}
		if err := s.queue.Remove(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("remove step %d: %w", data.StepNumber, err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func normalizeChannel(raw string) messaging.Channel {
	return messaging.ParseChannel(raw)
}

func sentEventType(channel messaging.Channel) leads.EventType {
	switch channel {
	case messaging.ChannelEmail:
		return leads.EventEmailSent
	case messaging.ChannelMMS:
		return leads.EventMMSSent
	}
	return leads.EventSMSSent
}
