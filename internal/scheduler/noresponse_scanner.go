package scheduler

import (
	"context"
	"fmt"
	"time"

	"leadflow/internal/leads/domain"
	leadsrepo "leadflow/internal/leads/repository"
	"leadflow/platform/logger"

	"github.com/robfig/cron/v3"
)

// NoResponseThresholds are the silence windows, in days, that produce timer events.
var NoResponseThresholds = []int{7, 14}

var noResponseStates = []domain.LeadState{
	domain.StateTouched,
	domain.StateRetargeting,
	domain.StateResponded,
}

type candidateLister interface {
	ListNoResponseCandidates(ctx context.Context, states []domain.LeadState, before time.Time, limit int) ([]leadsrepo.NoResponseCandidate, error)
}

type jobEnqueuer interface {
	Enqueue(ctx context.Context, name string, payload any, opts EnqueueOptions) (bool, error)
}

// NoResponseScanner periodically finds leads whose last outbound message
// went unanswered and queues CheckNoResponse jobs for them.
type NoResponseScanner struct {
	leads candidateLister
	queue jobEnqueuer
	log   *logger.Logger
	spec  string
	batch int
	now   func() time.Time
}

func NewNoResponseScanner(leads candidateLister, queue jobEnqueuer, log *logger.Logger, spec string, batch int) *NoResponseScanner {
	if spec == "" {
		spec = "@every 1h"
	}
	if batch <= 0 {
		batch = 500
	}
	return &NoResponseScanner{leads: leads, queue: queue, log: log, spec: spec, batch: batch, now: time.Now}
}

// Run scans on the cron schedule until ctx is done.
func (s *NoResponseScanner) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.spec, func() {
		if _, err := s.Scan(ctx); err != nil {
			s.log.Warn("no-response scan failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid no-response scan schedule %q: %w", s.spec, err)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// Scan runs one pass and returns the number of jobs queued.
func (s *NoResponseScanner) Scan(ctx context.Context) (int, error) {
	queued := 0
	for _, days := range NoResponseThresholds {
		before := s.now().Add(-time.Duration(days) * 24 * time.Hour)
		candidates, err := s.leads.ListNoResponseCandidates(ctx, noResponseStates, before, s.batch)
		if err != nil {
			return queued, fmt.Errorf("list %d-day candidates: %w", days, err)
		}

		for _, c := range candidates {
			leadID := c.LeadID.String()
			job := CheckNoResponseJobData{
				TeamID:              c.TeamID.String(),
				LeadID:              leadID,
				DaysThreshold:       days,
				LastOutboundAt:      c.LastOutboundAt,
				LastOutboundEventID: c.LastOutboundEventID.String(),
			}
			ok, err := s.queue.Enqueue(ctx, TaskCheckNoResponse, job, EnqueueOptions{
				UniqueID: NoResponseJobID(leadID, days, c.LastOutboundAt),
			})
			if err != nil {
				s.log.Warn("enqueue no-response check failed", "leadId", leadID, "days", days, "error", err)
				continue
			}
			if ok {
				queued++
			}
		}
	}

	if queued > 0 {
		s.log.Info("no-response checks queued", "count", queued)
	}
	return queued, nil
}
