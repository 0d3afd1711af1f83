// Package service schedules nurture sequences and executes their steps.
// Scheduling is optimistic: every step is queued at enrollment and each
// step re-checks the lead when it fires.
package service

import (
	"context"
	"time"

	leads "leadflow/internal/leads/domain"
	leadsrepo "leadflow/internal/leads/repository"
	"leadflow/internal/messaging"
	"leadflow/internal/nurture/repository"
	"leadflow/internal/scheduler"
	"leadflow/internal/teams"
	"leadflow/internal/templates"
	"leadflow/platform/logger"
	"leadflow/platform/metrics"

	"github.com/google/uuid"
)

const defaultEscalationDelay = time.Hour

type SequenceStore interface {
	GetByID(ctx context.Context, teamID, sequenceID uuid.UUID) (repository.Sequence, error)
}

type LeadReader interface {
	GetByID(ctx context.Context, teamID, leadID uuid.UUID) (leadsrepo.Lead, error)
}

type EventLog interface {
	RecordEvent(ctx context.Context, ev leads.LeadEvent) (*leads.LeadEvent, error)
	GetRecentEvents(ctx context.Context, teamID, leadID uuid.UUID, n int) ([]leads.LeadEvent, error)
}

type TemplateStore interface {
	GetByID(ctx context.Context, teamID, id uuid.UUID) (templates.Template, error)
}

type TeamReader interface {
	GetByID(ctx context.Context, teamID uuid.UUID) (teams.Team, error)
}

type Transport interface {
	SendMessage(ctx context.Context, msg messaging.Message) (messaging.Result, error)
}

// Queue is the delayed-job backend. ListDelayed and Remove back the
// cancellation of remaining steps.
type Queue interface {
	Enqueue(ctx context.Context, name string, payload any, opts scheduler.EnqueueOptions) (bool, error)
	ListDelayed(ctx context.Context, name string) ([]scheduler.DelayedJob, error)
	Remove(ctx context.Context, job scheduler.DelayedJob) error
}

type Service struct {
	sequences       SequenceStore
	leads           LeadReader
	events          EventLog
	templates       TemplateStore
	teams           TeamReader
	transport       Transport
	queue           Queue
	escalationDelay time.Duration
	metrics         *metrics.Metrics
	log             *logger.Logger
}

// New builds the nurture service. A non-positive escalationDelay uses one hour.
func New(sequences SequenceStore, leadReader LeadReader, events EventLog, tmpl TemplateStore, teamReader TeamReader, transport Transport, queue Queue, escalationDelay time.Duration, log *logger.Logger) *Service {
	if escalationDelay <= 0 {
		escalationDelay = defaultEscalationDelay
	}
	return &Service{
		sequences:       sequences,
		leads:           leadReader,
		events:          events,
		templates:       tmpl,
		teams:           teamReader,
		transport:       transport,
		queue:           queue,
		escalationDelay: escalationDelay,
		log:             log,
	}
}

func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

var _ scheduler.NurtureJobs = (*Service)(nil)

func parseIDs(team, lead, sequence string) (teamID, leadID, sequenceID uuid.UUID, err error) {
	if teamID, err = uuid.Parse(team); err != nil {
		return
	}
	if leadID, err = uuid.Parse(lead); err != nil {
		return
	}
	sequenceID, err = uuid.Parse(sequence)
	return
}
