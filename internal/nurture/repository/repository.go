// Package repository persists nurture sequence definitions.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("nurture sequence not found")

// Step is one drip message. DelayMs is relative to the previous step.
type Step struct {
	StepNumber      int    `json:"stepNumber"`
	Channel         string `json:"channel"`
	TemplateID      string `json:"templateId,omitempty"`
	TemplateContent string `json:"templateContent"`
	Subject         string `json:"subject,omitempty"`
	DelayMs         int64  `json:"delayMs"`
	MediaURL        string `json:"mediaUrl,omitempty"`
	LinkURL         string `json:"linkUrl,omitempty"`
}

// EscalationTrigger decides what a reply during nurture does.
type EscalationTrigger struct {
	ResponseKeywords []string `json:"responseKeywords"`
	TargetState      string   `json:"targetState"`
}

type Sequence struct {
	ID                uuid.UUID
	TeamID            uuid.UUID
	Name              string
	Steps             []Step
	EscalationTrigger *EscalationTrigger
	CreatedAt         time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID loads a sequence scoped to its team.
func (r *Repository) GetByID(ctx context.Context, teamID, sequenceID uuid.UUID) (Sequence, error) {
	var seq Sequence
	var rawSteps, rawEscalation []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, team_id, name, steps, escalation_trigger, created_at
		FROM nurture_sequences
		WHERE id = $1 AND team_id = $2
	`, sequenceID, teamID).Scan(&seq.ID, &seq.TeamID, &seq.Name, &rawSteps, &rawEscalation, &seq.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sequence{}, ErrNotFound
	}
	if err != nil {
		return Sequence{}, err
	}

	if err := json.Unmarshal(rawSteps, &seq.Steps); err != nil {
		return Sequence{}, fmt.Errorf("sequence %s steps: %w", seq.ID, err)
	}
	if len(rawEscalation) > 0 && string(rawEscalation) != "null" {
		var esc EscalationTrigger
		if err := json.Unmarshal(rawEscalation, &esc); err != nil {
			return Sequence{}, fmt.Errorf("sequence %s escalation trigger: %w", seq.ID, err)
		}
		seq.EscalationTrigger = &esc
	}
	return seq, nil
}
