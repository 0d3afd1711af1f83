package classifier

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

type phraseGate struct {
	MaxLength int      `yaml:"maxLength"`
	Phrases   []string `yaml:"phrases"`
}

type objectionRule struct {
	Type     ObjectionType `yaml:"type"`
	Keywords []string      `yaml:"keywords"`
}

type ruleDocument struct {
	OptOut         []string        `yaml:"optOut"`
	Consent        phraseGate      `yaml:"consent"`
	BookingConsent phraseGate      `yaml:"bookingConsent"`
	Positive       []string        `yaml:"positive"`
	Negations      []string        `yaml:"negations"`
	Objections     []objectionRule `yaml:"objections"`
}

// phrase is a keyword split into lowercase words.
type phrase struct {
	text  string
	words []string
}

type gate struct {
	maxLength int
	phrases   []phrase
}

type objection struct {
	objectionType ObjectionType
	keywords      []phrase
}

// ruleSet is the parsed, immutable form of a rule document.
type ruleSet struct {
	optOut         []phrase
	consent        gate
	bookingConsent gate
	positive       []phrase
	negations      map[string]struct{}
	objections     []objection
}

func parseRules(data []byte) (ruleSet, error) {
	var doc ruleDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ruleSet{}, fmt.Errorf("parse classifier rules: %w", err)
	}
	if len(doc.OptOut) == 0 {
		return ruleSet{}, fmt.Errorf("classifier rules: optOut keywords are required")
	}

	rs := ruleSet{
		optOut:         compilePhrases(doc.OptOut),
		consent:        gate{maxLength: doc.Consent.MaxLength, phrases: compilePhrases(doc.Consent.Phrases)},
		bookingConsent: gate{maxLength: doc.BookingConsent.MaxLength, phrases: compilePhrases(doc.BookingConsent.Phrases)},
		positive:       compilePhrases(doc.Positive),
		negations:      make(map[string]struct{}, len(doc.Negations)),
	}
	for _, n := range doc.Negations {
		rs.negations[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	for _, o := range doc.Objections {
		if o.Type == "" {
			return ruleSet{}, fmt.Errorf("classifier rules: objection without type")
		}
		rs.objections = append(rs.objections, objection{objectionType: o.Type, keywords: compilePhrases(o.Keywords)})
	}
	return rs, nil
}

func compilePhrases(raw []string) []phrase {
	out := make([]phrase, 0, len(raw))
	for _, r := range raw {
		words := tokenize(r)
		if len(words) == 0 {
			continue
		}
		out = append(out, phrase{text: strings.Join(words, " "), words: words})
	}
	return out
}
