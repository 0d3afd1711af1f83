package service

import (
	"context"
	"errors"
	"fmt"

	leads "leadflow/internal/leads/domain"
	leadsrepo "leadflow/internal/leads/repository"
	"leadflow/internal/messaging"
	"leadflow/internal/scheduler"
	"leadflow/internal/templates"
	"leadflow/internal/triggers/domain"
	"leadflow/internal/triggers/repository"

	"github.com/google/uuid"
)

var errNoTemplate = errors.New("trigger has no template")

// ExecuteTriggerJob performs one queued trigger firing.
func (s *Service) ExecuteTriggerJob(ctx context.Context, job scheduler.ExecuteTriggerJobData) error {
	teamID, leadID, err := parseIDs(job.TeamID, job.LeadID)
	if err != nil {
		return scheduler.NonRetryable(err)
	}
	triggerID, err := uuid.Parse(job.TriggerID)
	if err != nil {
		return scheduler.NonRetryable(fmt.Errorf("invalid trigger id %q: %w", job.TriggerID, err))
	}
	return s.ExecuteTrigger(ctx, teamID, leadID, triggerID, leads.EventType(job.EventType))
}

// ExecuteTrigger sends the trigger's templated message to the lead. Missing
// or disabled triggers, missing leads and suppressed leads are no-ops. A
// failed send marks the execution failed and returns the error so the
// queue retries it.
func (s *Service) ExecuteTrigger(ctx context.Context, teamID, leadID, triggerID uuid.UUID, sourceEvent leads.EventType) error {
	log := s.log.WithContext(ctx)

	trigger, err := s.store.GetByID(ctx, teamID, triggerID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Info("trigger not found, skipping", "triggerId", triggerID, "teamId", teamID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load trigger %s: %w", triggerID, err)
	}
	if !trigger.Enabled {
		log.Info("trigger disabled, skipping", "triggerId", triggerID)
		return nil
	}

	lead, err := s.leads.GetByID(ctx, teamID, leadID)
	if errors.Is(err, leadsrepo.ErrNotFound) {
		log.Info("lead not found, skipping trigger", "triggerId", triggerID, "leadId", leadID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load lead %s: %w", leadID, err)
	}
	if lead.State == leads.StateSuppressed {
		log.Info("lead suppressed, trigger not sent", "triggerId", triggerID, "leadId", leadID)
		s.metrics.RecordTriggerExecution(string(trigger.Type), "suppressed")
		return nil
	}

	exec, err := s.store.CreateExecution(ctx, domain.Execution{
		TriggerID: trigger.ID,
		TeamID:    teamID,
		LeadID:    leadID,
		EventType: string(sourceEvent),
	})
	if err != nil {
		return fmt.Errorf("create execution for trigger %s: %w", triggerID, err)
	}

	msg, tmpl, err := s.buildMessage(ctx, trigger, lead)
	var result messaging.Result
	if err == nil {
		result, err = s.transport.SendMessage(ctx, msg)
	}
	if err != nil {
		reason := err.Error()
		if cerr := s.store.CompleteExecution(ctx, exec.ID, domain.ExecutionFailed, &reason); cerr != nil {
			log.Warn("mark trigger execution failed", "executionId", exec.ID, "error", cerr)
		}
		s.metrics.RecordTriggerExecution(string(trigger.Type), string(domain.ExecutionFailed))
		err = fmt.Errorf("trigger %s for lead %s: %w", trigger.ID, leadID, err)
		if errors.Is(err, errNoTemplate) || errors.Is(err, templates.ErrNotFound) {
			return scheduler.NonRetryable(err)
		}
		return err
	}

	// The message is out; bookkeeping failures below are logged only.
	firedAt := s.now().UTC()
	if err := s.store.CompleteExecution(ctx, exec.ID, domain.ExecutionSent, nil); err != nil {
		log.Warn("mark trigger execution sent", "executionId", exec.ID, "error", err)
	}
	if err := s.store.RecordFiring(ctx, teamID, trigger.ID, firedAt); err != nil {
		log.Warn("update trigger statistics", "triggerId", trigger.ID, "error", err)
	}
	s.metrics.RecordTriggerExecution(string(trigger.Type), string(domain.ExecutionSent))

	payload := map[string]any{
		"triggerId":       trigger.ID.String(),
		"triggerType":     string(trigger.Type),
		"executionId":     exec.ID.String(),
		"templateId":      tmpl.ID.String(),
		"sourceEventType": string(sourceEvent),
		"body":            msg.Body,
	}
	if result.ProviderMessageID != "" {
		payload["providerMessageId"] = result.ProviderMessageID
	} else {
		payload["naturalKey"] = exec.ID.String()
	}
	if _, err := s.events.RecordEvent(ctx, leads.LeadEvent{
		TeamID:      teamID,
		LeadID:      leadID,
		EventType:   sentEventType(msg.Channel),
		EventSource: leads.SourceTrigger,
		Payload:     payload,
	}); err != nil {
		log.Warn("record trigger send event", "triggerId", trigger.ID, "leadId", leadID, "error", err)
	}

	log.Info("trigger executed", "triggerId", trigger.ID, "triggerType", trigger.Type, "leadId", leadID, "channel", msg.Channel)
	return nil
}

func (s *Service) buildMessage(ctx context.Context, trigger domain.Trigger, lead leadsrepo.Lead) (messaging.Message, templates.Template, error) {
	tmpl, err := s.loadTemplate(ctx, trigger)
	if err != nil {
		return messaging.Message{}, templates.Template{}, err
	}
	team, err := s.teams.GetByID(ctx, trigger.TeamID)
	if err != nil {
		return messaging.Message{}, tmpl, fmt.Errorf("load team: %w", err)
	}

	channelName := trigger.Config.Channel
	if channelName == "" {
		channelName = tmpl.Channel
	}
	channel := messaging.ParseChannel(channelName)

	fields := templates.Fields{
		FirstName: lead.FirstName,
		LastName:  lead.LastName,
		Company:   lead.Company,
		Link:      team.CalendarLink,
	}
	if lead.Email != nil {
		fields.Email = *lead.Email
	}

	msg := messaging.Message{
		Channel: channel,
		Body:    templates.Personalize(tmpl.Body, fields),
	}
	switch channel {
	case messaging.ChannelEmail:
		if lead.Email == nil || *lead.Email == "" {
			return messaging.Message{}, tmpl, scheduler.NonRetryable(errors.New("lead has no email address"))
		}
		msg.To = *lead.Email
		msg.From = team.FromEmail
		msg.Subject = trigger.Config.Subject
		if msg.Subject == "" {
			msg.Subject = tmpl.Subject
		}
		msg.Subject = templates.Personalize(msg.Subject, fields)
	default:
		msg.Channel = messaging.ChannelSMS
		msg.To = lead.Phone
		msg.From = team.FromPhone
	}
	return msg, tmpl, nil
}

func (s *Service) loadTemplate(ctx context.Context, trigger domain.Trigger) (templates.Template, error) {
	if trigger.TemplateID != nil {
		return s.templates.GetByID(ctx, trigger.TeamID, *trigger.TemplateID)
	}
	if trigger.TemplateName != "" {
		return s.templates.GetByName(ctx, trigger.TeamID, trigger.TemplateName)
	}
	return templates.Template{}, errNoTemplate
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
