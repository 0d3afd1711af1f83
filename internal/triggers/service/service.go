// Package service implements the trigger matcher, dispatcher and executor.
package service

import (
	"context"
	"time"

	leads "leadflow/internal/leads/domain"
	leadsrepo "leadflow/internal/leads/repository"
	"leadflow/internal/messaging"
	"leadflow/internal/scheduler"
	"leadflow/internal/teams"
	"leadflow/internal/templates"
	"leadflow/internal/triggers/domain"
	"leadflow/platform/logger"
	"leadflow/platform/metrics"

	"github.com/google/uuid"
)

// TriggerStore is the trigger persistence the service needs.
type TriggerStore interface {
	GetByID(ctx context.Context, teamID, triggerID uuid.UUID) (domain.Trigger, error)
	ListEnabled(ctx context.Context, teamID uuid.UUID, triggerType domain.TriggerType) ([]domain.Trigger, error)
	RecordFiring(ctx context.Context, teamID, triggerID uuid.UUID, firedAt time.Time) error
	CreateExecution(ctx context.Context, exec domain.Execution) (domain.Execution, error)
	CompleteExecution(ctx context.Context, executionID uuid.UUID, status domain.ExecutionStatus, reason *string) error
}

type LeadReader interface {
	GetByID(ctx context.Context, teamID, leadID uuid.UUID) (leadsrepo.Lead, error)
}

// EventLog records and reads lifecycle events.
type EventLog interface {
	RecordEvent(ctx context.Context, ev leads.LeadEvent) (*leads.LeadEvent, error)
	GetLeadEvents(ctx context.Context, teamID, leadID uuid.UUID, filter leadsrepo.EventFilter) ([]leads.LeadEvent, error)
}

type TemplateStore interface {
	GetByID(ctx context.Context, teamID, id uuid.UUID) (templates.Template, error)
	GetByName(ctx context.Context, teamID uuid.UUID, name string) (templates.Template, error)
}

type TeamReader interface {
	GetByID(ctx context.Context, teamID uuid.UUID) (teams.Team, error)
}

type Transport interface {
	SendMessage(ctx context.Context, msg messaging.Message) (messaging.Result, error)
}

type Queue interface {
	Enqueue(ctx context.Context, name string, payload any, opts scheduler.EnqueueOptions) (bool, error)
}

// EventMarker stamps events once dispatch finished.
type EventMarker interface {
	MarkEventProcessed(ctx context.Context, teamID, eventID uuid.UUID) error
}

type Service struct {
	store     TriggerStore
	leads     LeadReader
	events    EventLog
	templates TemplateStore
	teams     TeamReader
	transport Transport
	queue     Queue
	marker    EventMarker
	metrics   *metrics.Metrics
	log       *logger.Logger
	now       func() time.Time
}

func New(store TriggerStore, leadReader LeadReader, events EventLog, tmpl TemplateStore, teamReader TeamReader, transport Transport, queue Queue, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		leads:     leadReader,
		events:    events,
		templates: tmpl,
		teams:     teamReader,
		transport: transport,
		queue:     queue,
		log:       log,
		now:       time.Now,
	}
}

func (s *Service) SetEventMarker(m EventMarker) {
	s.marker = m
}

func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

var _ scheduler.TriggerJobs = (*Service)(nil)
