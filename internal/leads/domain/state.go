// Package domain holds the lead lifecycle model: states, event types, the
// fixed transition table and the replay fold that derives state from history.
package domain

// LeadState is a position in the outreach lifecycle.
type LeadState string

const (
	StateNew               LeadState = "new"
	StateTouched           LeadState = "touched"
	StateResponded         LeadState = "responded"
	StateRetargeting       LeadState = "retargeting"
	StateSoftInterest      LeadState = "soft_interest"
	StateEmailCaptured     LeadState = "email_captured"
	StateHighIntent        LeadState = "high_intent"
	StateContentNurture    LeadState = "content_nurture"
	StateAppointmentBooked LeadState = "appointment_booked"
	StateInCallQueue       LeadState = "in_call_queue"
	StateSuppressed        LeadState = "suppressed"
	StateClosed            LeadState = "closed"
)

var knownStates = map[LeadState]struct{}{
	StateNew:               {},
	StateTouched:           {},
	StateResponded:         {},
	StateRetargeting:       {},
	StateSoftInterest:      {},
	StateEmailCaptured:     {},
	StateHighIntent:        {},
	StateContentNurture:    {},
	StateAppointmentBooked: {},
	StateInCallQueue:       {},
	StateSuppressed:        {},
	StateClosed:            {},
}

// ParseLeadState returns the state for s and whether it is known.
func ParseLeadState(s string) (LeadState, bool) {
	state := LeadState(s)
	_, ok := knownStates[state]
	return state, ok
}

func (s LeadState) IsValid() bool {
	_, ok := knownStates[s]
	return ok
}

// IsTerminal reports whether no ordinary lifecycle event can move the lead.
func (s LeadState) IsTerminal() bool {
	return s == StateSuppressed || s == StateClosed
}

// IsAdvanced reports whether the lead already reached a high-value state
// that makes nurture escalation pointless.
func (s LeadState) IsAdvanced() bool {
	switch s {
	case StateHighIntent, StateAppointmentBooked, StateInCallQueue, StateClosed:
		return true
	}
	return false
}

func (s LeadState) String() string { return string(s) }

// Ptr returns a pointer to a copy of s.
func (s LeadState) Ptr() *LeadState { return &s }
