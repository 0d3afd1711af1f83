package classifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPriorityOrder(t *testing.T) {
	cases := []struct {
		name       string
		message    string
		objection  ObjectionType
		intent     Intent
		confidence int
		respond    bool
	}{
		{"opt out", "STOP", Unknown, IntentOptOut, 95, false},
		{"opt out beats positive", "yes stop", Unknown, IntentOptOut, 95, false},
		{"opt out phrase", "Please leave me alone.", Unknown, IntentOptOut, 95, false},
		{"opt out inside carrier keyword", "STOPALL", Unknown, IntentOptOut, 95, false},
		{"opt out inflected", "Unsubscribed me yet?", Unknown, IntentOptOut, 95, false},
		{"opt out with digits", "stop2", Unknown, IntentOptOut, 95, false},
		{"opt out run together", "removeme", Unknown, IntentOptOut, 95, false},
		{"opt out phrase across spacing", "please   DO NOT\tcontact me", Unknown, IntentOptOut, 95, false},
		{"opt out curly apostrophe", "Don’t contact me again", Unknown, IntentOptOut, 95, false},
		{"short consent", "ok", BookingConsent, IntentSendCalendar, 85, true},
		{"consent phrase", "Sure, send it!", BookingConsent, IntentSendCalendar, 85, true},
		{"long positive", "Yes, I'm interested in hearing about the plans", Positive, IntentSendCalendar, 80, true},
		{"one objection keyword", "I'm really busy this week", TooBusy, IntentSendRebuttal, 70, true},
		{"two objection keywords", "Way too expensive for our budget right now", TooExpensive, IntentSendRebuttal, 80, true},
		{"negated interest", "not interested", NotInterested, IntentSendRebuttal, 70, true},
		{"negated consent", "not sure", NeedToThink, IntentSendRebuttal, 70, true},
		{"fallback", "who is this?", Unknown, IntentEscalateHuman, 40, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.message)
			assert.Equal(t, tc.objection, got.ObjectionType)
			assert.Equal(t, tc.intent, got.Intent)
			assert.Equal(t, tc.confidence, got.Confidence)
			assert.Equal(t, tc.respond, got.ShouldAutoRespond)
		})
	}
}

func TestClassifyConsentLengthGate(t *testing.T) {
	msg := "I booked a look at the brochure already."
	require.Len(t, msg, 40)

	got := Classify(msg)
	assert.NotEqual(t, BookingConsent, got.ObjectionType)
	assert.False(t, DetectBookingConsent(msg))

	long := "ok " + strings.Repeat("x", 30)
	assert.NotEqual(t, BookingConsent, Classify(long).ObjectionType)
}

func TestClassifyObjectionConfidenceCapped(t *testing.T) {
	got := Classify("expensive, too much, over budget, cannot afford the price")
	assert.Equal(t, TooExpensive, got.ObjectionType)
	assert.Equal(t, 90, got.Confidence)
}

func TestDetectBookingConsent(t *testing.T) {
	assert.True(t, DetectBookingConsent("perfect"))
	assert.True(t, DetectBookingConsent("Cool, please do"))
	assert.True(t, DetectBookingConsent("fine"))
	assert.False(t, DetectBookingConsent("not fine"))
	assert.False(t, DetectBookingConsent("what time works for you tomorrow"))

	// The full classifier does not treat "perfect" alone as consent.
	assert.NotEqual(t, BookingConsent, Classify("perfect").ObjectionType)
}

func TestClassifyOptOutMatchesInsideWords(t *testing.T) {
	got := Classify("yes sure, STOPALL")
	assert.Equal(t, IntentOptOut, got.Intent)
	assert.Equal(t, []string{"stop"}, got.Matched)
	assert.False(t, got.ShouldAutoRespond)
}

func TestClassifyConsentMatchesWholeWords(t *testing.T) {
	// "ok" inside "book" and "yes" inside "eyes" are not consent.
	assert.NotEqual(t, BookingConsent, Classify("book me").ObjectionType)
	assert.NotEqual(t, BookingConsent, Classify("my eyes").ObjectionType)
}

func TestLoadRejectsInvalidRules(t *testing.T) {
	_, err := Load([]byte("optOut: []"))
	assert.Error(t, err)

	_, err = Load([]byte("optOut: [stop]\nobjections:\n  - keywords: [busy]\n"))
	assert.Error(t, err)

	c, err := Load([]byte("optOut: [halt]\n"))
	require.NoError(t, err)
	assert.Equal(t, IntentOptOut, c.Classify("HALT").Intent)
	assert.Equal(t, IntentEscalateHuman, c.Classify("stop").Intent)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"don't", "contact", "me"}, tokenize("Don’t contact me!"))
	assert.Equal(t, []string{"ok"}, tokenize("'ok'"))
}
