package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	cases := []struct {
		from  LeadState
		event EventType
		want  LeadState
		ok    bool
	}{
		{StateNew, EventSMSSent, StateTouched, true},
		{StateNew, EventEmailSent, StateTouched, true},
		{StateTouched, EventSMSSent, StateTouched, false},
		{StateTouched, EventSMSReceived, StateResponded, true},
		{StateTouched, EventTimer7D, StateRetargeting, true},
		{StateRetargeting, EventTimer14D, StateContentNurture, true},
		{StateResponded, EventSoftInterestDetected, StateSoftInterest, true},
		{StateSoftInterest, EventEmailCaptured, StateEmailCaptured, true},
		{StateEmailCaptured, EventContentSent, StateContentNurture, true},
		{StateContentNurture, EventHighIntentDetected, StateHighIntent, true},
		{StateAppointmentBooked, EventHighIntentDetected, StateAppointmentBooked, false},
		{StateHighIntent, EventCallQueued, StateInCallQueue, true},
		{StateResponded, EventAppointmentBooked, StateAppointmentBooked, true},
		{StateContentNurture, EventLeadClosed, StateClosed, true},
		{StateClosed, EventSMSReceived, StateClosed, false},
		{StateClosed, EventOptOut, StateSuppressed, true},
		{StateContentNurture, EventOptOut, StateSuppressed, true},
		{StateSuppressed, EventOptOut, StateSuppressed, false},
		{StateSuppressed, EventAppointmentBooked, StateSuppressed, false},
		{StateNew, EventObjectionDetected, StateNew, false},
		{StateResponded, EventStageChanged, StateResponded, false},
	}

	for _, tc := range cases {
		got, ok := Transition(tc.from, tc.event)
		assert.Equal(t, tc.want, got, "%s + %s", tc.from, tc.event)
		assert.Equal(t, tc.ok, ok, "%s + %s", tc.from, tc.event)
	}
}

func TestParseHelpers(t *testing.T) {
	et, ok := ParseEventType(" sms_sent ")
	assert.True(t, ok)
	assert.Equal(t, EventSMSSent, et)

	_, ok = ParseEventType("BOGUS")
	assert.False(t, ok)

	st, ok := ParseLeadState("content_nurture")
	assert.True(t, ok)
	assert.Equal(t, StateContentNurture, st)
	assert.False(t, LeadState("limbo").IsValid())
}

func TestResolve(t *testing.T) {
	prev, next := Resolve(StateNew, EventSMSSent, nil)
	if assert.NotNil(t, next) {
		assert.Equal(t, StateNew, *prev)
		assert.Equal(t, StateTouched, *next)
	}

	prev, next = Resolve(StateTouched, EventNurtureEnrolled, nil)
	assert.Nil(t, prev)
	assert.Nil(t, next)

	prev, next = Resolve(StateResponded, EventStageChanged, StateContentNurture.Ptr())
	if assert.NotNil(t, next) {
		assert.Equal(t, StateResponded, *prev)
		assert.Equal(t, StateContentNurture, *next)
	}

	_, next = Resolve(StateResponded, EventStageChanged, nil)
	assert.Nil(t, next)

	_, next = Resolve(StateSuppressed, EventHighIntentDetected, StateHighIntent.Ptr())
	assert.Nil(t, next)

	_, next = Resolve(StateClosed, EventStageChanged, StateTouched.Ptr())
	assert.Nil(t, next)
}
