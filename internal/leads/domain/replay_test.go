package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(at time.Time, et EventType, newState *LeadState) LeadEvent {
	return LeadEvent{ID: uuid.New(), EventType: et, NewState: newState, CreatedAt: at}
}

func TestReconstructFoldsInAscendingOrder(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	events := []LeadEvent{
		event(base.Add(3*time.Hour), EventSMSReceived, StateResponded.Ptr()),
		event(base, EventSMSSent, StateTouched.Ptr()),
		event(base.Add(time.Hour), EventObjectionDetected, nil),
	}

	got := Reconstruct(events)

	assert.Equal(t, StateResponded, got.State)
	assert.Equal(t, 3, got.EventCount)
	assert.Equal(t, 2, got.TransitionCount)
	require.NotNil(t, got.LastEventAt)
	assert.True(t, got.LastEventAt.Equal(base.Add(3*time.Hour)))
	assert.Equal(t, EventSMSReceived, events[0].EventType, "input must not be reordered")
}

func TestReconstructIsDeterministic(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	events := []LeadEvent{
		event(base, EventSMSSent, StateTouched.Ptr()),
		event(base, EventTimer7D, StateRetargeting.Ptr()),
		event(base.Add(time.Minute), EventTimer14D, StateContentNurture.Ptr()),
	}

	first := Reconstruct(events)
	second := Reconstruct([]LeadEvent{events[2], events[1], events[0]})
	assert.Equal(t, first, second)
}

func TestReconstructIgnoresEventsWithoutNewState(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	events := []LeadEvent{event(base, EventSMSSent, StateTouched.Ptr())}
	before := Reconstruct(events)

	events = append(events, event(base.Add(time.Hour), EventNurtureEnrolled, nil))
	after := Reconstruct(events)

	assert.Equal(t, before.State, after.State)
	assert.Equal(t, before.TransitionCount, after.TransitionCount)
	assert.Equal(t, 2, after.EventCount)
}

func TestReconstructEmptyHistory(t *testing.T) {
	got := Reconstruct(nil)
	assert.Equal(t, StateNew, got.State)
	assert.Zero(t, got.EventCount)
	assert.Nil(t, got.LastEventAt)
}

func TestVerify(t *testing.T) {
	ok := Verify(StateTouched, Replay{State: StateTouched})
	assert.True(t, ok.IsValid)
	assert.Empty(t, ok.Discrepancy)

	bad := Verify(StateHighIntent, Replay{State: StateTouched})
	assert.False(t, bad.IsValid)
	assert.Equal(t, StateTouched, bad.ReconstructedState)
	assert.Contains(t, bad.Discrepancy, "high_intent")
}
