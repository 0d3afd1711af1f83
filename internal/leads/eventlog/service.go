// Package eventlog is the append-only lead event log: idempotent ingestion,
// history reads, and state reconstruction/verification by replay.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow/internal/leads/domain"
	"leadflow/internal/leads/repository"
	"leadflow/platform/apperr"
	"leadflow/platform/logger"
	"leadflow/platform/metrics"

	"github.com/google/uuid"
)

// Repository is the storage the event log needs.
type Repository interface {
	GetByID(ctx context.Context, teamID, leadID uuid.UUID) (repository.Lead, error)
	UpdateState(ctx context.Context, teamID, leadID uuid.UUID, state domain.LeadState) error
	AppendEvent(ctx context.Context, ev domain.LeadEvent) (domain.LeadEvent, bool, error)
	ListEvents(ctx context.Context, teamID, leadID uuid.UUID, filter repository.EventFilter) ([]domain.LeadEvent, error)
	ListAllEvents(ctx context.Context, teamID, leadID uuid.UUID) ([]domain.LeadEvent, error)
}

// Sink is notified after an event row was actually inserted.
type Sink interface {
	EventRecorded(ctx context.Context, ev domain.LeadEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev domain.LeadEvent) error

func (f SinkFunc) EventRecorded(ctx context.Context, ev domain.LeadEvent) error { return f(ctx, ev) }

type namedSink struct {
	name string
	sink Sink
}

type Service struct {
	repo    Repository
	log     *logger.Logger
	metrics *metrics.Metrics
	sinks   []namedSink
	now     func() time.Time
}

func New(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// SetMetrics attaches Prometheus collectors.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// AddSink registers a post-insert listener. Not safe to call concurrently
// with RecordEvent; register sinks during wiring.
func (s *Service) AddSink(name string, sink Sink) {
	s.sinks = append(s.sinks, namedSink{name: name, sink: sink})
}

// RecordEvent appends ev. The dedupe key is derived when absent. A
// duplicate returns (nil, nil). When ev.NewState is nil the transition
// table decides the new state; a set NewState is recorded as given.
func (s *Service) RecordEvent(ctx context.Context, ev domain.LeadEvent) (*domain.LeadEvent, error) {
	if ev.TeamID == uuid.Nil || ev.LeadID == uuid.Nil {
		return nil, apperr.Validation("teamId and leadId are required").WithOp("eventlog.RecordEvent")
	}
	if _, ok := domain.ParseEventType(string(ev.EventType)); !ok {
		return nil, apperr.Validation(fmt.Sprintf("unknown event type %q", ev.EventType)).WithOp("eventlog.RecordEvent")
	}
	if ev.NewState != nil && !ev.NewState.IsValid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown state %q", *ev.NewState)).WithOp("eventlog.RecordEvent")
	}
	if ev.EventSource == "" {
		ev.EventSource = domain.SourceSystem
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}
	if ev.DedupeKey == "" {
		ev.DedupeKey = domain.DedupeKey(ev.LeadID, ev.EventType, ev.Payload, ev.CreatedAt)
	}

	stored, inserted, err := s.repo.AppendEvent(ctx, ev)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("lead not found").WithOp("eventlog.RecordEvent")
	}
	if err != nil {
		return nil, fmt.Errorf("append %s for lead %s: %w", ev.EventType, ev.LeadID, err)
	}
	if !inserted {
		s.metrics.RecordEvent(string(ev.EventType), "duplicate")
		s.log.Debug("duplicate lead event suppressed", "leadId", ev.LeadID, "eventType", ev.EventType, "dedupeKey", ev.DedupeKey)
		return nil, nil
	}
	s.metrics.RecordEvent(string(ev.EventType), "inserted")

	if stored.NewState != nil {
		s.log.Info("lead state transition",
			"leadId", stored.LeadID,
			"teamId", stored.TeamID,
			"eventType", stored.EventType,
			"from", derefState(stored.PreviousState),
			"to", *stored.NewState,
		)
	}

	for _, ns := range s.sinks {
		if err := ns.sink.EventRecorded(ctx, stored); err != nil {
			s.log.Warn("event sink failed", "sink", ns.name, "eventId", stored.ID, "error", err)
		}
	}
	return &stored, nil
}

// GetRecentEvents returns the newest n events of a lead.
func (s *Service) GetRecentEvents(ctx context.Context, teamID, leadID uuid.UUID, n int) ([]domain.LeadEvent, error) {
	if n <= 0 {
		n = 10
	}
	return s.repo.ListEvents(ctx, teamID, leadID, repository.EventFilter{Limit: n})
}

// GetLeadEvents returns the events matching filter, newest first.
func (s *Service) GetLeadEvents(ctx context.Context, teamID, leadID uuid.UUID, filter repository.EventFilter) ([]domain.LeadEvent, error) {
	return s.repo.ListEvents(ctx, teamID, leadID, filter)
}

// ReconstructState replays every event of the lead.
func (s *Service) ReconstructState(ctx context.Context, teamID, leadID uuid.UUID) (domain.Replay, error) {
	events, err := s.repo.ListAllEvents(ctx, teamID, leadID)
	if err != nil {
		return domain.Replay{}, fmt.Errorf("load events for lead %s: %w", leadID, err)
	}
	return domain.Reconstruct(events), nil
}

// VerifyLeadState compares the stored projection to the replay. It never writes.
func (s *Service) VerifyLeadState(ctx context.Context, teamID, leadID uuid.UUID) (domain.Verification, error) {
	lead, err := s.repo.GetByID(ctx, teamID, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Verification{}, apperr.NotFound("lead not found").WithOp("eventlog.VerifyLeadState")
	}
	if err != nil {
		return domain.Verification{}, err
	}
	replay, err := s.ReconstructState(ctx, teamID, leadID)
	if err != nil {
		return domain.Verification{}, err
	}
	return domain.Verify(lead.State, replay), nil
}

// ReconcileLeadState rewrites a drifted projection from the replay and
// returns the verification observed before the repair.
func (s *Service) ReconcileLeadState(ctx context.Context, teamID, leadID uuid.UUID) (domain.Verification, error) {
	v, err := s.VerifyLeadState(ctx, teamID, leadID)
	if err != nil || v.IsValid {
		return v, err
	}
	if err := s.repo.UpdateState(ctx, teamID, leadID, v.ReconstructedState); err != nil {
		return v, fmt.Errorf("reconcile lead %s: %w", leadID, err)
	}
	s.log.Warn("lead state reconciled",
		"leadId", leadID,
		"teamId", teamID,
		"stored", v.StoredState,
		"reconstructed", v.ReconstructedState,
	)
	return v, nil
}

func derefState(s *domain.LeadState) string {
	if s == nil {
		return ""
	}
	return string(*s)
}
