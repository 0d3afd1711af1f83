package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ExecutionStatus string

const (
	ExecutionPending ExecutionStatus = "pending"
	ExecutionSent    ExecutionStatus = "sent"
	ExecutionFailed  ExecutionStatus = "failed"
)

// Execution records one firing attempt of a trigger.
type Execution struct {
	ID          uuid.UUID
	TriggerID   uuid.UUID
	TeamID      uuid.UUID
	LeadID      uuid.UUID
	Status      ExecutionStatus
	Error       *string
	EventType   string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// CanTransition reports whether an execution may move from one status to
// another. Only pending executions move, and only to a terminal status.
func CanTransition(from, to ExecutionStatus) error {
	if from != ExecutionPending {
		return fmt.Errorf("execution already %s", from)
	}
	if to != ExecutionSent && to != ExecutionFailed {
		return fmt.Errorf("invalid execution status %q", to)
	}
	return nil
}
