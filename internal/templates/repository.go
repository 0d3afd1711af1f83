// Package templates stores team message templates and renders them for a lead.
package templates

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("template not found")

type Template struct {
	ID        uuid.UUID
	TeamID    uuid.UUID
	Name      string
	Channel   string
	Subject   string
	Body      string
	CreatedAt time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetByID(ctx context.Context, teamID, id uuid.UUID) (Template, error) {
	return scanTemplate(r.pool.QueryRow(ctx, `
		SELECT id, team_id, name, channel, subject, body, created_at
		FROM message_templates
		WHERE id = $1 AND team_id = $2
	`, id, teamID))
}

func (r *Repository) GetByName(ctx context.Context, teamID uuid.UUID, name string) (Template, error) {
	return scanTemplate(r.pool.QueryRow(ctx, `
		SELECT id, team_id, name, channel, subject, body, created_at
		FROM message_templates
		WHERE team_id = $1 AND name = $2
	`, teamID, name))
}

func scanTemplate(row pgx.Row) (Template, error) {
	var t Template
	err := row.Scan(&t.ID, &t.TeamID, &t.Name, &t.Channel, &t.Subject, &t.Body, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Template{}, ErrNotFound
	}
	return t, err
}
