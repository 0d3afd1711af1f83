package service

import (
	"context"

	"leadflow/internal/responder/classifier"
	"leadflow/internal/suggestions"
	"leadflow/platform/apperr"

	"github.com/google/uuid"
)

// SuggestResponse drafts a reply for an operator. It has no fallback: a
// generator failure is returned as is.
func (s *Service) SuggestResponse(ctx context.Context, teamID, leadID uuid.UUID, message string) (string, error) {
	if s.suggester == nil {
		return "", apperr.Precondition("reply suggestions are not configured").WithOp("responder.SuggestResponse")
	}

	lead, err := s.leads.GetByID(ctx, teamID, leadID)
	if isNotFound(err) {
		return "", apperr.NotFound("lead not found").WithOp("responder.SuggestResponse")
	}
	if err != nil {
		return "", wrapLoad("lead", err)
	}

	verdict := s.classifier.Classify(message)
	priority := suggestions.PriorityNormal
	if verdict.Intent == classifier.IntentSendCalendar {
		priority = suggestions.PriorityHigh
	}

	result, err := s.suggester.Execute(ctx, suggestions.Request{
		Task:     suggestions.TaskReplySuggestion,
		Priority: priority,
		Context: map[string]any{
			"firstName":     lead.FirstName,
			"company":       lead.Company,
			"state":         string(lead.State),
			"objectionType": string(verdict.ObjectionType),
			"intent":        string(verdict.Intent),
			"confidence":    verdict.Confidence,
		},
		Input: message,
	})
	if err != nil {
		return "", err
	}
	return result.Output, nil
}
