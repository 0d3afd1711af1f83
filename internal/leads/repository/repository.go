package repository

import (
	"context"
	"errors"
	"time"

	"leadflow/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	TeamID    uuid.UUID
	FirstName string
	LastName  string
	Company   string
	Phone     string
	Email     *string
	State     domain.LeadState
	CreatedAt time.Time
	UpdatedAt time.Time
}

const leadColumns = `id, tenant_id, team_id, first_name, last_name, company, phone, email, state, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	var state string
	err := row.Scan(
		&lead.ID, &lead.TenantID, &lead.TeamID,
		&lead.FirstName, &lead.LastName, &lead.Company,
		&lead.Phone, &lead.Email, &state,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	lead.State = domain.LeadState(state)
	return lead, nil
}

// GetByID loads a lead scoped to its team.
func (r *Repository) GetByID(ctx context.Context, teamID, leadID uuid.UUID) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1 AND team_id = $2
	`, leadID, teamID))
}

// GetByPhone returns the most recently created lead of the team with phone.
func (r *Repository) GetByPhone(ctx context.Context, teamID uuid.UUID, phone string) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE team_id = $1 AND phone = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, teamID, phone))
}

// UpdateState overwrites the cached state projection.
func (r *Repository) UpdateState(ctx context.Context, teamID, leadID uuid.UUID, state domain.LeadState) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE leads SET state = $3, updated_at = now()
		WHERE id = $1 AND team_id = $2
	`, leadID, teamID, string(state))
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// NoResponseCandidate is a lead whose last outbound message went unanswered.
type NoResponseCandidate struct {
	LeadID              uuid.UUID
	TeamID              uuid.UUID
	LastOutboundEventID uuid.UUID
	LastOutboundAt      time.Time
}

// ListNoResponseCandidates returns leads in one of states whose latest
// outbound event is older than before and has no inbound reply after it.
func (r *Repository) ListNoResponseCandidates(ctx context.Context, states []domain.LeadState, before time.Time, limit int) ([]NoResponseCandidate, error) {
	stateNames := make([]string, len(states))
	for i, s := range states {
		stateNames[i] = string(s)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.team_id, o.id, o.created_at
		FROM leads l
		JOIN LATERAL (
			SELECT e.id, e.created_at
			FROM lead_events e
			WHERE e.lead_id = l.id AND e.team_id = l.team_id
			  AND e.event_type = ANY($2)
			ORDER BY e.created_at DESC
			LIMIT 1
		) o ON true
		WHERE l.state = ANY($1)
		  AND o.created_at < $3
		  AND NOT EXISTS (
			SELECT 1 FROM lead_events i
			WHERE i.lead_id = l.id AND i.team_id = l.team_id
			  AND i.event_type = ANY($4)
			  AND i.created_at > o.created_at
		  )
		ORDER BY o.created_at ASC
		LIMIT $5
	`, stateNames, outboundTypes, before, inboundTypes, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]NoResponseCandidate, 0)
	for rows.Next() {
		var c NoResponseCandidate
		if err := rows.Scan(&c.LeadID, &c.TeamID, &c.LastOutboundEventID, &c.LastOutboundAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

var (
	outboundTypes = []string{
		string(domain.EventSMSSent), string(domain.EventMMSSent),
		string(domain.EventEmailSent), string(domain.EventContentSent),
	}
	inboundTypes = []string{string(domain.EventSMSReceived), string(domain.EventEmailReceived)}
)
