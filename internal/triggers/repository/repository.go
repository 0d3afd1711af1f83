package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow/internal/triggers/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("trigger not found")
	// ErrExecutionFinished is returned when a terminal execution is updated again.
	ErrExecutionFinished = errors.New("trigger execution already finished")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const triggerColumns = `id, team_id, type, enabled, config, template_id, template_name, fired_count, last_fired_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrigger(row rowScanner) (domain.Trigger, error) {
	var t domain.Trigger
	var triggerType string
	var rawConfig []byte
	if err := row.Scan(&t.ID, &t.TeamID, &triggerType, &t.Enabled, &rawConfig,
		&t.TemplateID, &t.TemplateName, &t.FiredCount, &t.LastFiredAt); err != nil {
		return domain.Trigger{}, err
	}
	t.Type = domain.TriggerType(triggerType)
	cfg, err := domain.ParseConfig(rawConfig)
	if err != nil {
		return domain.Trigger{}, fmt.Errorf("trigger %s config: %w", t.ID, err)
	}
	t.Config = cfg
	return t, nil
}

// GetByID loads a trigger scoped to its team, enabled or not.
func (r *Repository) GetByID(ctx context.Context, teamID, triggerID uuid.UUID) (domain.Trigger, error) {
	t, err := scanTrigger(r.pool.QueryRow(ctx, `
		SELECT `+triggerColumns+`
		FROM triggers
		WHERE id = $1 AND team_id = $2
	`, triggerID, teamID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Trigger{}, ErrNotFound
	}
	return t, err
}

// ListEnabled returns the team's enabled triggers of one type.
func (r *Repository) ListEnabled(ctx context.Context, teamID uuid.UUID, triggerType domain.TriggerType) ([]domain.Trigger, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+triggerColumns+`
		FROM triggers
		WHERE team_id = $1 AND type = $2 AND enabled
		ORDER BY created_at ASC
	`, teamID, string(triggerType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Trigger, 0)
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// RecordFiring bumps the firing statistics after a successful send.
func (r *Repository) RecordFiring(ctx context.Context, teamID, triggerID uuid.UUID, firedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE triggers
		SET fired_count = fired_count + 1, last_fired_at = $3
		WHERE id = $1 AND team_id = $2
	`, triggerID, teamID, firedAt)
	return err
}

// CreateExecution inserts a pending execution row.
func (r *Repository) CreateExecution(ctx context.Context, exec domain.Execution) (domain.Execution, error) {
	exec.Status = domain.ExecutionPending
	err := r.pool.QueryRow(ctx, `
		INSERT INTO trigger_executions (trigger_id, team_id, lead_id, status, event_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, exec.TriggerID, exec.TeamID, exec.LeadID, string(exec.Status), exec.EventType).Scan(&exec.ID, &exec.CreatedAt)
	return exec, err
}

// CompleteExecution moves a pending execution to sent or failed.
func (r *Repository) CompleteExecution(ctx context.Context, executionID uuid.UUID, status domain.ExecutionStatus, reason *string) error {
	if err := domain.CanTransition(domain.ExecutionPending, status); err != nil {
		return err
	}
	result, err := r.pool.Exec(ctx, `
		UPDATE trigger_executions
		SET status = $2, error = $3, completed_at = now()
		WHERE id = $1 AND status = 'pending'
	`, executionID, string(status), reason)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrExecutionFinished
	}
	return nil
}
