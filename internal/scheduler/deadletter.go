package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"leadflow/platform/logger"
	"leadflow/platform/metrics"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DeadLetter is a job that exhausted its retries.
type DeadLetter struct {
	ID        uuid.UUID
	TaskType  string
	TaskID    string
	Queue     string
	Payload   json.RawMessage
	Error     string
	Attempts  int
	CreatedAt time.Time
}

// DeadLetterStore persists dead letters in dead_letter_jobs.
type DeadLetterStore struct {
	pool *pgxpool.Pool
}

func NewDeadLetterStore(pool *pgxpool.Pool) *DeadLetterStore {
	return &DeadLetterStore{pool: pool}
}

func (s *DeadLetterStore) Insert(ctx context.Context, dl DeadLetter) error {
	if s == nil || s.pool == nil {
		return errors.New("dead letter store not configured")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dead_letter_jobs (task_type, task_id, queue, payload, error, attempts)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, dl.TaskType, dl.TaskID, dl.Queue, []byte(dl.Payload), dl.Error, dl.Attempts)
	return err
}

// List returns the newest dead letters, optionally filtered by task type.
func (s *DeadLetterStore) List(ctx context.Context, taskType string, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, task_type, task_id, queue, payload, error, attempts, created_at
		FROM dead_letter_jobs
		WHERE ($1::text = '' OR task_type = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, taskType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]DeadLetter, 0)
	for rows.Next() {
		var dl DeadLetter
		var payload []byte
		if err := rows.Scan(&dl.ID, &dl.TaskType, &dl.TaskID, &dl.Queue, &payload, &dl.Error, &dl.Attempts, &dl.CreatedAt); err != nil {
			return nil, err
		}
		dl.Payload = payload
		items = append(items, dl)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// DeleteBefore prunes dead letters older than cutoff.
func (s *DeadLetterStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM dead_letter_jobs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

type deadLetterWriter interface {
	Insert(ctx context.Context, dl DeadLetter) error
}

// DeadLetterRecorder turns final job failures into dead-letter rows and
// Sentry reports. Register Record with Worker.OnFailure.
type DeadLetterRecorder struct {
	store   deadLetterWriter
	log     *logger.Logger
	metrics *metrics.Metrics
	sentry  bool
}

func NewDeadLetterRecorder(store deadLetterWriter, log *logger.Logger) *DeadLetterRecorder {
	return &DeadLetterRecorder{store: store, log: log}
}

func (r *DeadLetterRecorder) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// EnableSentry reports dead letters to the Sentry hub initialised by the process.
func (r *DeadLetterRecorder) EnableSentry() {
	r.sentry = true
}

func (r *DeadLetterRecorder) Record(ctx context.Context, job FailedJob) {
	if !job.Final {
		return
	}

	dl := DeadLetter{
		TaskType: job.TaskType,
		TaskID:   job.TaskID,
		Queue:    job.Queue,
		Payload:  jsonPayload(job.Payload),
		Error:    errorString(job.Err),
		Attempts: job.Attempt,
	}
	if err := r.store.Insert(ctx, dl); err != nil {
		r.log.Error("dead letter insert failed", "task", job.TaskType, "taskId", job.TaskID, "error", err)
	}
	r.metrics.RecordDeadLetter(job.TaskType)
	r.log.Error("job dead-lettered", "task", job.TaskType, "taskId", job.TaskID, "attempts", job.Attempt, "error", dl.Error)

	if r.sentry && job.Err != nil {
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("task", job.TaskType)
			scope.SetTag("task_id", job.TaskID)
			scope.SetTag("queue", job.Queue)
			sentry.CaptureException(job.Err)
		})
	}
}

func jsonPayload(raw []byte) json.RawMessage {
	if len(raw) > 0 && json.Valid(raw) {
		return raw
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}

func errorString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

const defaultDeadLetterCleanupInterval = time.Hour

type deadLetterPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DeadLetterCleanup periodically removes dead letters past their retention.
type DeadLetterCleanup struct {
	store     deadLetterPruner
	log       *logger.Logger
	interval  time.Duration
	retention time.Duration
}

func NewDeadLetterCleanup(store deadLetterPruner, log *logger.Logger, interval, retention time.Duration) *DeadLetterCleanup {
	if interval <= 0 {
		interval = defaultDeadLetterCleanupInterval
	}
	return &DeadLetterCleanup{store: store, log: log, interval: interval, retention: retention}
}

func (c *DeadLetterCleanup) Run(ctx context.Context) {
	if c == nil || c.store == nil || c.retention <= 0 {
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *DeadLetterCleanup) cleanup(ctx context.Context) {
	deleted, err := c.store.DeleteBefore(ctx, time.Now().Add(-c.retention))
	if err != nil {
		c.log.Warn("dead letter cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		c.log.Info("dead letter cleanup deleted jobs", "deleted", deleted)
	}
}
