// Package teams reads per-team sending settings.
package teams

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("team not found")

// Team carries the settings outbound messaging needs.
type Team struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Name         string
	FromPhone    string
	FromEmail    string
	CalendarLink string
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetByID(ctx context.Context, teamID uuid.UUID) (Team, error) {
	var t Team
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, from_phone, from_email, calendar_link
		FROM teams
		WHERE id = $1
	`, teamID).Scan(&t.ID, &t.TenantID, &t.Name, &t.FromPhone, &t.FromEmail, &t.CalendarLink)
	if errors.Is(err, pgx.ErrNoRows) {
		return Team{}, ErrNotFound
	}
	return t, err
}

// CalendarLinkOr returns the team's booking link, or fallback when unset.
func (t Team) CalendarLinkOr(fallback string) string {
	if t.CalendarLink != "" {
		return t.CalendarLink
	}
	return fallback
}
