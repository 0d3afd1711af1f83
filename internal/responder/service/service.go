// Package service answers inbound lead messages: it classifies the text,
// records the outcome on the lead's event log and, when allowed, sends a
// templated reply.
package service

import (
	"context"
	"errors"
	"fmt"

	leads "leadflow/internal/leads/domain"
	leadsrepo "leadflow/internal/leads/repository"
	"leadflow/internal/messaging"
	"leadflow/internal/responder/classifier"
	"leadflow/internal/suggestions"
	"leadflow/internal/teams"
	"leadflow/platform/logger"
	"leadflow/platform/metrics"
	"leadflow/platform/phone"

	"github.com/google/uuid"
)

// Reasons reported when no reply is sent.
const (
	ReasonOptOut       = "Opt-out detected, compliance required"
	ReasonHumanReview  = "Requires human review"
	ReasonLeadNotFound = "Lead not found"
	ReasonSuppressed   = "Lead is suppressed"
	ReasonDuplicate    = "Message already processed"
)

type LeadStore interface {
	GetByID(ctx context.Context, teamID, leadID uuid.UUID) (leadsrepo.Lead, error)
	GetByPhone(ctx context.Context, teamID uuid.UUID, phone string) (leadsrepo.Lead, error)
}

type EventLog interface {
	RecordEvent(ctx context.Context, ev leads.LeadEvent) (*leads.LeadEvent, error)
}

type TeamReader interface {
	GetByID(ctx context.Context, teamID uuid.UUID) (teams.Team, error)
}

type Transport interface {
	SendMessage(ctx context.Context, msg messaging.Message) (messaging.Result, error)
}

// Suggester is the upstream reply suggestion generator.
type Suggester interface {
	Execute(ctx context.Context, req suggestions.Request) (suggestions.Result, error)
}

type Service struct {
	leads       LeadStore
	events      EventLog
	teams       TeamReader
	transport   Transport
	classifier  *classifier.Classifier
	selector    *Selector
	suggester   Suggester
	calendarURL string
	phoneRegion string
	metrics     *metrics.Metrics
	log         *logger.Logger
}

func New(leadStore LeadStore, events EventLog, teamReader TeamReader, transport Transport, log *logger.Logger) (*Service, error) {
	selector, err := NewSelector(nil)
	if err != nil {
		return nil, err
	}
	return &Service{
		leads:       leadStore,
		events:      events,
		teams:       teamReader,
		transport:   transport,
		classifier:  classifier.Default(),
		selector:    selector,
		phoneRegion: phone.DefaultRegion,
		log:         log,
	}, nil
}

// SetCalendarFallback sets the booking link used when a team has none.
func (s *Service) SetCalendarFallback(url string) {
	s.calendarURL = url
}

func (s *Service) SetPhoneRegion(region string) {
	if region != "" {
		s.phoneRegion = region
	}
}

func (s *Service) SetSuggester(sg Suggester) {
	s.suggester = sg
}

func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// DetectBookingConsent reports whether a short message agrees to book.
func (s *Service) DetectBookingConsent(message string) bool {
	return s.classifier.DetectBookingConsent(message)
}

func (s *Service) resolveLead(ctx context.Context, teamID uuid.UUID, leadID *uuid.UUID, fromPhone string) (leadsrepo.Lead, error) {
	if leadID != nil {
		return s.leads.GetByID(ctx, teamID, *leadID)
	}
	normalized := phone.NormalizeE164InRegion(fromPhone, s.phoneRegion)
	if normalized == "" {
		return leadsrepo.Lead{}, leadsrepo.ErrNotFound
	}
	return s.leads.GetByPhone(ctx, teamID, normalized)
}

func isNotFound(err error) bool {
	return errors.Is(err, leadsrepo.ErrNotFound)
}

func wrapLoad(what string, err error) error {
	return fmt.Errorf("load %s: %w", what, err)
}
