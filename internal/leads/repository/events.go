package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leadflow/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AppendEvent inserts ev while holding the lead row lock, resolving the
// state transition against the locked projection and updating it in the
// same transaction. inserted is false when the dedupe key already exists;
// the returned event is then zero and the projection untouched.
func (r *Repository) AppendEvent(ctx context.Context, ev domain.LeadEvent) (stored domain.LeadEvent, inserted bool, err error) {
	payloadJSON, err := json.Marshal(payloadOrEmpty(ev.Payload))
	if err != nil {
		return domain.LeadEvent{}, false, fmt.Errorf("marshal payload: %w", err)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.LeadEvent{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var currentRaw string
	err = tx.QueryRow(ctx, `
		SELECT state, tenant_id FROM leads
		WHERE id = $1 AND team_id = $2
		FOR UPDATE
	`, ev.LeadID, ev.TeamID).Scan(&currentRaw, &ev.TenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LeadEvent{}, false, ErrNotFound
	}
	if err != nil {
		return domain.LeadEvent{}, false, err
	}

	ev.PreviousState, ev.NewState = domain.Resolve(domain.LeadState(currentRaw), ev.EventType, ev.NewState)

	err = tx.QueryRow(ctx, `
		INSERT INTO lead_events (
			tenant_id, team_id, lead_id, event_type, event_source,
			previous_state, new_state, payload, dedupe_key, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (dedupe_key) DO NOTHING
		RETURNING id, created_at
	`, ev.TenantID, ev.TeamID, ev.LeadID, string(ev.EventType), ev.EventSource,
		statePtr(ev.PreviousState), statePtr(ev.NewState), payloadJSON, ev.DedupeKey, ev.CreatedAt,
	).Scan(&ev.ID, &ev.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LeadEvent{}, false, nil
	}
	if err != nil {
		return domain.LeadEvent{}, false, err
	}

	if ev.NewState != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE leads SET state = $3, updated_at = now()
			WHERE id = $1 AND team_id = $2
		`, ev.LeadID, ev.TeamID, string(*ev.NewState)); err != nil {
			return domain.LeadEvent{}, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.LeadEvent{}, false, err
	}
	return ev, true, nil
}

// EventFilter narrows ListEvents. Zero values mean no restriction.
type EventFilter struct {
	Types []domain.EventType
	Since *time.Time
	Limit int
}

const eventColumns = `id, tenant_id, team_id, lead_id, event_type, event_source,
	previous_state, new_state, payload, dedupe_key, created_at, processed_at`

// ListEvents returns a lead's events newest first.
func (r *Repository) ListEvents(ctx context.Context, teamID, leadID uuid.UUID, filter EventFilter) ([]domain.LeadEvent, error) {
	types := make([]string, 0, len(filter.Types))
	for _, t := range filter.Types {
		types = append(types, string(t))
	}
	var limit *int
	if filter.Limit > 0 {
		limit = &filter.Limit
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM lead_events
		WHERE team_id = $1 AND lead_id = $2
		  AND (cardinality($3::text[]) = 0 OR event_type = ANY($3))
		  AND ($4::timestamptz IS NULL OR created_at >= $4)
		ORDER BY created_at DESC, id DESC
		LIMIT $5
	`, teamID, leadID, types, filter.Since, limit)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// ListAllEvents returns every event of a lead in ascending creation order.
func (r *Repository) ListAllEvents(ctx context.Context, teamID, leadID uuid.UUID) ([]domain.LeadEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM lead_events
		WHERE team_id = $1 AND lead_id = $2
		ORDER BY created_at ASC, id ASC
	`, teamID, leadID)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// GetEvent loads one event scoped to its team.
func (r *Repository) GetEvent(ctx context.Context, teamID, eventID uuid.UUID) (domain.LeadEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM lead_events
		WHERE team_id = $1 AND id = $2
	`, teamID, eventID)
	if err != nil {
		return domain.LeadEvent{}, err
	}
	events, err := collectEvents(rows)
	if err != nil {
		return domain.LeadEvent{}, err
	}
	if len(events) == 0 {
		return domain.LeadEvent{}, ErrNotFound
	}
	return events[0], nil
}

// MarkEventProcessed stamps processed_at once trigger dispatch finished.
func (r *Repository) MarkEventProcessed(ctx context.Context, teamID, eventID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE lead_events SET processed_at = now()
		WHERE team_id = $1 AND id = $2 AND processed_at IS NULL
	`, teamID, eventID)
	return err
}

func collectEvents(rows pgx.Rows) ([]domain.LeadEvent, error) {
	defer rows.Close()

	events := make([]domain.LeadEvent, 0)
	for rows.Next() {
		var ev domain.LeadEvent
		var eventType string
		var prev, next *string
		var payload []byte
		if err := rows.Scan(
			&ev.ID, &ev.TenantID, &ev.TeamID, &ev.LeadID, &eventType, &ev.EventSource,
			&prev, &next, &payload, &ev.DedupeKey, &ev.CreatedAt, &ev.ProcessedAt,
		); err != nil {
			return nil, err
		}
		ev.EventType = domain.EventType(eventType)
		ev.PreviousState = toState(prev)
		ev.NewState = toState(next)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &ev.Payload); err != nil {
				return nil, fmt.Errorf("decode payload of event %s: %w", ev.ID, err)
			}
		}
		events = append(events, ev)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

func payloadOrEmpty(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}

func statePtr(s *domain.LeadState) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func toState(s *string) *domain.LeadState {
	if s == nil {
		return nil
	}
	st := domain.LeadState(*s)
	return &st
}
