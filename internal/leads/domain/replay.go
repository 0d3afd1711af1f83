package domain

import (
	"sort"
	"time"
)

// Replay is the result of folding a lead's history.
type Replay struct {
	State           LeadState
	EventCount      int
	LastEventAt     *time.Time
	TransitionCount int
}

// Reconstruct folds events in ascending creation order, starting from
// StateNew. Only events carrying a NewState move the running state. The
// input slice is not modified.
func Reconstruct(events []LeadEvent) Replay {
	ordered := make([]LeadEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].ID.String() < ordered[j].ID.String()
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	result := Replay{State: StateNew, EventCount: len(ordered)}
	for _, ev := range ordered {
		if ev.NewState == nil {
			continue
		}
		result.State = *ev.NewState
		result.TransitionCount++
	}
	if n := len(ordered); n > 0 {
		last := ordered[n-1].CreatedAt
		result.LastEventAt = &last
	}
	return result
}

// Verification compares the stored projection with the replayed state.
type Verification struct {
	IsValid            bool
	StoredState        LeadState
	ReconstructedState LeadState
	Discrepancy        string
}

// Verify checks stored against a replay result.
func Verify(stored LeadState, replay Replay) Verification {
	v := Verification{
		IsValid:            stored == replay.State,
		StoredState:        stored,
		ReconstructedState: replay.State,
	}
	if !v.IsValid {
		v.Discrepancy = "stored state " + string(stored) + " does not match replayed state " + string(replay.State)
	}
	return v
}
