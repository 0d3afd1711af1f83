// Package classifier sorts inbound lead messages into an objection and
// intent taxonomy using ordered keyword rules. Opt-out always wins.
package classifier

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type ObjectionType string

const (
	BookingConsent ObjectionType = "BOOKING_CONSENT"
	Positive       ObjectionType = "POSITIVE"
	TooBusy        ObjectionType = "TOO_BUSY"
	NotInterested  ObjectionType = "NOT_INTERESTED"
	NeedToThink    ObjectionType = "NEED_TO_THINK"
	BadTiming      ObjectionType = "BAD_TIMING"
	AlreadyHave    ObjectionType = "ALREADY_HAVE"
	TooExpensive   ObjectionType = "TOO_EXPENSIVE"
	SpouseDecision ObjectionType = "SPOUSE_DECISION"
	Unknown        ObjectionType = "UNKNOWN"
)

type Intent string

const (
	IntentOptOut        Intent = "OPT_OUT"
	IntentSendCalendar  Intent = "SEND_CALENDAR"
	IntentSendRebuttal  Intent = "SEND_REBUTTAL"
	IntentEscalateHuman Intent = "ESCALATE_HUMAN"
)

const (
	optOutConfidence   = 95
	consentConfidence  = 85
	positiveConfidence = 80
	fallbackConfidence = 40

	objectionBase      = 60
	objectionPerMatch  = 10
	objectionCeiling   = 90
	autoRespondMinimum = 70
)

// Result is a classifier verdict.
type Result struct {
	ObjectionType     ObjectionType
	Confidence        int
	Intent            Intent
	ShouldAutoRespond bool
	Matched           []string
}

type Classifier struct {
	rules ruleSet
}

// Load builds a classifier from a YAML rule document.
func Load(data []byte) (*Classifier, error) {
	rules, err := parseRules(data)
	if err != nil {
		return nil, err
	}
	return &Classifier{rules: rules}, nil
}

var defaultClassifier = mustLoadDefault()

func mustLoadDefault() *Classifier {
	c, err := Load(defaultRules)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the classifier built from the embedded rules.
func Default() *Classifier { return defaultClassifier }

// Classify runs the embedded rules against message.
func Classify(message string) Result { return defaultClassifier.Classify(message) }

// DetectBookingConsent runs the embedded consent rule against message.
func DetectBookingConsent(message string) bool {
	return defaultClassifier.DetectBookingConsent(message)
}

// Classify evaluates the rules in priority order; the first rule that
// matches decides the result.
func (c *Classifier) Classify(message string) Result {
	words := tokenize(message)

	if hits := matchSubstrings(normalize(message), c.rules.optOut); len(hits) > 0 {
		return Result{
			ObjectionType: Unknown,
			Confidence:    optOutConfidence,
			Intent:        IntentOptOut,
			Matched:       hits,
		}
	}

	if hits := c.matchGate(message, words, c.rules.consent); len(hits) > 0 {
		return Result{
			ObjectionType:     BookingConsent,
			Confidence:        consentConfidence,
			Intent:            IntentSendCalendar,
			ShouldAutoRespond: true,
			Matched:           hits,
		}
	}

	if hits := c.matchAll(words, c.rules.positive, true); len(hits) > 0 {
		return Result{
			ObjectionType:     Positive,
			Confidence:        positiveConfidence,
			Intent:            IntentSendCalendar,
			ShouldAutoRespond: true,
			Matched:           hits,
		}
	}

	for _, o := range c.rules.objections {
		hits := c.matchAll(words, o.keywords, false)
		if len(hits) == 0 {
			continue
		}
		confidence := min(objectionCeiling, objectionBase+len(hits)*objectionPerMatch)
		return Result{
			ObjectionType:     o.objectionType,
			Confidence:        confidence,
			Intent:            IntentSendRebuttal,
			ShouldAutoRespond: confidence >= autoRespondMinimum,
			Matched:           hits,
		}
	}

	return Result{
		ObjectionType: Unknown,
		Confidence:    fallbackConfidence,
		Intent:        IntentEscalateHuman,
	}
}

// DetectBookingConsent reports whether a short message agrees to a booking.
func (c *Classifier) DetectBookingConsent(message string) bool {
	return len(c.matchGate(message, tokenize(message), c.rules.bookingConsent)) > 0
}

func (c *Classifier) matchGate(message string, words []string, g gate) []string {
	if g.maxLength > 0 && utf8.RuneCountInString(strings.TrimSpace(message)) >= g.maxLength {
		return nil
	}
	return c.matchAll(words, g.phrases, true)
}

// matchSubstrings returns the phrases occurring anywhere in text, so
// "STOPALL" and "unsubscribed" still hit "stop" and "unsubscribe".
func matchSubstrings(text string, phrases []phrase) []string {
	var hits []string
	for _, p := range phrases {
		if strings.Contains(text, p.text) {
			hits = append(hits, p.text)
		}
	}
	return hits
}

// matchAll returns the distinct phrases found in words. With negatable
// set, a phrase directly preceded by a negation word does not count.
func (c *Classifier) matchAll(words []string, phrases []phrase, negatable bool) []string {
	var hits []string
	for _, p := range phrases {
		if c.contains(words, p, negatable) {
			hits = append(hits, p.text)
		}
	}
	return hits
}

func (c *Classifier) contains(words []string, p phrase, negatable bool) bool {
	n := len(p.words)
	for i := 0; i+n <= len(words); i++ {
		if !equalWords(words[i:i+n], p.words) {
			continue
		}
		if negatable && i > 0 {
			if _, negated := c.rules.negations[words[i-1]]; negated {
				continue
			}
		}
		return true
	}
	return false
}

func equalWords(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// normalize lowercases s, unifies apostrophes and collapses whitespace runs
// to single spaces.
func normalize(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "’", "'"))
	return strings.Join(strings.Fields(s), " ")
}

// tokenize lowercases s and splits it into words. Apostrophes stay inside
// words so "don't" is one token.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	words := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, "'"); f != "" {
			words = append(words, f)
		}
	}
	return words
}
