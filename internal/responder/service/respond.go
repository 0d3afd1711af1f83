package service

import (
	"context"

	leads "leadflow/internal/leads/domain"
	"leadflow/internal/messaging"
	"leadflow/internal/responder/classifier"

	"github.com/google/uuid"
)

// InboundMessage is a text received from a lead.
type InboundMessage struct {
	TeamID            uuid.UUID
	FromPhone         string
	ToPhone           string
	Body              string
	LeadID            *uuid.UUID
	ProviderMessageID string
}

// Response reports what ProcessAndRespond did. Error carries the reason
// when no reply was sent.
type Response struct {
	Success           bool
	MessageID         string
	Response          string
	Intent            classifier.Intent
	ObjectionType     classifier.ObjectionType
	Confidence        int
	ShouldAutoRespond bool
	SentCalendarLink  bool
	Error             string
}

// ProcessAndRespond classifies an inbound message, records it and the
// verdict on the lead and sends an auto-response when the verdict allows.
// Opt-outs and low-confidence verdicts never produce a send. The returned
// error is reserved for store failures before anything was recorded.
func (s *Service) ProcessAndRespond(ctx context.Context, in InboundMessage) (Response, error) {
	log := s.log.WithContext(ctx)
	verdict := s.classifier.Classify(in.Body)
	s.metrics.RecordClassification(string(verdict.ObjectionType), string(verdict.Intent))

	resp := Response{
		Intent:            verdict.Intent,
		ObjectionType:     verdict.ObjectionType,
		Confidence:        verdict.Confidence,
		ShouldAutoRespond: verdict.ShouldAutoRespond,
	}

	lead, err := s.resolveLead(ctx, in.TeamID, in.LeadID, in.FromPhone)
	if isNotFound(err) {
		log.Info("inbound message from unknown lead", "teamId", in.TeamID, "from", in.FromPhone)
		resp.Error = ReasonLeadNotFound
		return resp, nil
	}
	if err != nil {
		return resp, wrapLoad("lead", err)
	}

	inboundPayload := map[string]any{
		"body":          in.Body,
		"from":          in.FromPhone,
		"to":            in.ToPhone,
		"sentiment":     sentimentOf(verdict),
		"objectionType": string(verdict.ObjectionType),
		"intent":        string(verdict.Intent),
		"confidence":    verdict.Confidence,
	}
	if in.ProviderMessageID != "" {
		inboundPayload["providerMessageId"] = in.ProviderMessageID
	}
	inbound, err := s.events.RecordEvent(ctx, leads.LeadEvent{
		TeamID:      in.TeamID,
		LeadID:      lead.ID,
		EventType:   leads.EventSMSReceived,
		EventSource: leads.SourceInbound,
		Payload:     inboundPayload,
	})
	if err != nil {
		return resp, err
	}
	if inbound == nil {
		log.Info("inbound message already processed", "leadId", lead.ID, "providerMessageId", in.ProviderMessageID)
		resp.Success = true
		resp.ShouldAutoRespond = false
		resp.Error = ReasonDuplicate
		return resp, nil
	}

	s.recordVerdict(ctx, lead.ID, in.TeamID, inbound.ID, verdict)

	switch {
	case verdict.Intent == classifier.IntentOptOut:
		log.Info("lead opted out", "leadId", lead.ID, "teamId", in.TeamID)
		resp.Success = true
		resp.Error = ReasonOptOut
		return resp, nil
	case !verdict.ShouldAutoRespond:
		resp.Success = true
		resp.Error = ReasonHumanReview
		return resp, nil
	case lead.State == leads.StateSuppressed:
		resp.Success = true
		resp.ShouldAutoRespond = false
		resp.Error = ReasonSuppressed
		return resp, nil
	}

	team, err := s.teams.GetByID(ctx, in.TeamID)
	if err != nil {
		log.Warn("load team for auto-response", "teamId", in.TeamID, "error", err)
		resp.Error = err.Error()
		return resp, nil
	}
	selection, ok := s.selector.Select(verdict.ObjectionType, team.CalendarLinkOr(s.calendarURL))
	if !ok {
		resp.Success = true
		resp.Error = ReasonHumanReview
		return resp, nil
	}

	from := in.ToPhone
	if from == "" {
		from = team.FromPhone
	}
	result, err := s.transport.SendMessage(ctx, messaging.Message{
		To:      lead.Phone,
		From:    from,
		Channel: messaging.ChannelSMS,
		Body:    selection.Text,
	})
	if err != nil {
		resp.Error = err.Error()
		return resp, nil
	}

	resp.Success = true
	resp.MessageID = result.ProviderMessageID
	resp.Response = selection.Text
	resp.SentCalendarLink = selection.SentCalendarLink

	sentPayload := map[string]any{
		"body":             selection.Text,
		"inReplyTo":        inbound.ID.String(),
		"objectionType":    string(verdict.ObjectionType),
		"intent":           string(verdict.Intent),
		"sentCalendarLink": selection.SentCalendarLink,
	}
	if result.ProviderMessageID != "" {
		sentPayload["providerMessageId"] = result.ProviderMessageID
	} else {
		sentPayload["naturalKey"] = "reply:" + inbound.ID.String()
	}
	if _, err := s.events.RecordEvent(ctx, leads.LeadEvent{
		TeamID:      in.TeamID,
		LeadID:      lead.ID,
		EventType:   leads.EventSMSSent,
		EventSource: leads.SourceAIClassification,
		Payload:     sentPayload,
	}); err != nil {
		log.Warn("record auto-response", "leadId", lead.ID, "error", err)
	}
	return resp, nil
}

// recordVerdict stores the classification as its own lifecycle event.
// Failures are logged; the inbound message is already on record.
func (s *Service) recordVerdict(ctx context.Context, leadID, teamID, inboundID uuid.UUID, verdict classifier.Result) {
	var eventType leads.EventType
	switch {
	case verdict.Intent == classifier.IntentOptOut:
		eventType = leads.EventOptOut
	case verdict.ObjectionType == classifier.BookingConsent:
		eventType = leads.EventHighIntentDetected
	case verdict.ObjectionType == classifier.Positive:
		eventType = leads.EventSoftInterestDetected
	case verdict.Intent == classifier.IntentSendRebuttal:
		eventType = leads.EventObjectionDetected
	default:
		return
	}

	_, err := s.events.RecordEvent(ctx, leads.LeadEvent{
		TeamID:      teamID,
		LeadID:      leadID,
		EventType:   eventType,
		EventSource: leads.SourceAIClassification,
		Payload: map[string]any{
			"objectionType":  string(verdict.ObjectionType),
			"intent":         string(verdict.Intent),
			"confidence":     verdict.Confidence,
			"matched":        verdict.Matched,
			"inboundEventId": inboundID.String(),
			"naturalKey":     inboundID.String(),
		},
	})
	if err != nil {
		s.log.Warn("record classification event", "leadId", leadID, "eventType", eventType, "error", err)
	}
}

func sentimentOf(r classifier.Result) string {
	switch {
	case r.Intent == classifier.IntentOptOut, r.ObjectionType == classifier.NotInterested:
		return "negative"
	case r.ObjectionType == classifier.BookingConsent, r.ObjectionType == classifier.Positive:
		return "positive"
	}
	return "neutral"
}
