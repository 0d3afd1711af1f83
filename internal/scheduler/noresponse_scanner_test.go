package scheduler

import (
	"context"
	"testing"
	"time"

	"leadflow/internal/leads/domain"
	leadsrepo "leadflow/internal/leads/repository"
	"leadflow/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCandidates struct {
	candidates []leadsrepo.NoResponseCandidate
	befores    []time.Time
}

func (f *fakeCandidates) ListNoResponseCandidates(_ context.Context, states []domain.LeadState, before time.Time, _ int) ([]leadsrepo.NoResponseCandidate, error) {
	f.befores = append(f.befores, before)
	out := make([]leadsrepo.NoResponseCandidate, 0)
	for _, c := range f.candidates {
		if c.LastOutboundAt.Before(before) {
			out = append(out, c)
		}
	}
	return out, nil
}

type enqueued struct {
	name string
	job  any
	opts EnqueueOptions
}

type fakeEnqueuer struct {
	jobs []enqueued
	seen map[string]bool
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, name string, payload any, opts EnqueueOptions) (bool, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if opts.UniqueID != "" && f.seen[opts.UniqueID] {
		return false, nil
	}
	f.seen[opts.UniqueID] = true
	f.jobs = append(f.jobs, enqueued{name: name, job: payload, opts: opts})
	return true, nil
}

func TestNoResponseScannerQueuesPerThreshold(t *testing.T) {
	now := time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)
	lead8 := leadsrepo.NoResponseCandidate{LeadID: uuid.New(), TeamID: uuid.New(), LastOutboundEventID: uuid.New(), LastOutboundAt: now.Add(-8 * 24 * time.Hour)}
	lead15 := leadsrepo.NoResponseCandidate{LeadID: uuid.New(), TeamID: uuid.New(), LastOutboundEventID: uuid.New(), LastOutboundAt: now.Add(-15 * 24 * time.Hour)}

	lister := &fakeCandidates{candidates: []leadsrepo.NoResponseCandidate{lead8, lead15}}
	queue := &fakeEnqueuer{}
	scanner := NewNoResponseScanner(lister, queue, logger.Discard(), "", 0)
	scanner.now = func() time.Time { return now }

	n, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	days := map[string][]int{}
	for _, j := range queue.jobs {
		assert.Equal(t, TaskCheckNoResponse, j.name)
		job := j.job.(CheckNoResponseJobData)
		days[job.LeadID] = append(days[job.LeadID], job.DaysThreshold)
	}
	assert.Equal(t, []int{7}, days[lead8.LeadID.String()])
	assert.Equal(t, []int{7, 14}, days[lead15.LeadID.String()])

	n, err = scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "identities are stable across scans")
}
