package domain

type transitionRule struct {
	from map[LeadState]bool // nil means any non-terminal state
	not  map[LeadState]bool
	to   LeadState
}

func states(s ...LeadState) map[LeadState]bool {
	m := make(map[LeadState]bool, len(s))
	for _, st := range s {
		m[st] = true
	}
	return m
}

var transitionTable = map[EventType][]transitionRule{
	EventSMSSent:   {{from: states(StateNew), to: StateTouched}},
	EventMMSSent:   {{from: states(StateNew), to: StateTouched}},
	EventEmailSent: {{from: states(StateNew), to: StateTouched}},
	EventSMSReceived: {
		{from: states(StateTouched, StateRetargeting, StateSoftInterest), to: StateResponded},
	},
	EventEmailReceived: {
		{from: states(StateTouched, StateRetargeting, StateSoftInterest), to: StateResponded},
	},
	EventTimer7D: {
		{from: states(StateTouched, StateResponded), to: StateRetargeting},
	},
	EventTimer14D: {
		{from: states(StateTouched, StateRetargeting, StateResponded), to: StateContentNurture},
	},
	EventSoftInterestDetected: {
		{from: states(StateResponded), to: StateSoftInterest},
	},
	EventEmailCaptured: {
		{from: states(StateTouched, StateResponded, StateRetargeting, StateSoftInterest), to: StateEmailCaptured},
	},
	EventContentSent: {
		{from: states(StateEmailCaptured), to: StateContentNurture},
	},
	EventHighIntentDetected: {
		{not: states(StateAppointmentBooked, StateInCallQueue), to: StateHighIntent},
	},
	EventAppointmentBooked: {{to: StateAppointmentBooked}},
	EventCallQueued: {
		{from: states(StateHighIntent, StateAppointmentBooked), to: StateInCallQueue},
	},
	EventLeadClosed: {{to: StateClosed}},
}

// Transition applies the fixed transition table. ok is false when no rule
// matches, in which case the event leaves the state unchanged.
func Transition(from LeadState, event EventType) (to LeadState, ok bool) {
	if event == EventOptOut {
		if from == StateSuppressed {
			return from, false
		}
		return StateSuppressed, true
	}
	if from.IsTerminal() {
		return from, false
	}

	for _, rule := range transitionTable[event] {
		if rule.from != nil && !rule.from[from] {
			continue
		}
		if rule.not[from] {
			continue
		}
		if rule.to == from {
			return from, false
		}
		return rule.to, true
	}
	return from, false
}

// Resolve decides the (previous, new) state pair recorded with an event
// appended while the lead sits in current. An explicit new state (operator
// moves, escalation) bypasses the table but never leaves suppressed, and
// closed may only move to suppressed. Both results are nil when the event
// causes no transition.
func Resolve(current LeadState, event EventType, explicit *LeadState) (previous, next *LeadState) {
	if explicit != nil {
		if current == StateSuppressed {
			return nil, nil
		}
		if current == StateClosed && *explicit != StateSuppressed {
			return nil, nil
		}
		return current.Ptr(), explicit.Ptr()
	}
	if event == EventStageChanged {
		return nil, nil
	}
	to, ok := Transition(current, event)
	if !ok {
		return nil, nil
	}
	return current.Ptr(), to.Ptr()
}
