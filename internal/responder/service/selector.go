package service

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"strings"

	"leadflow/internal/responder/classifier"

	"gopkg.in/yaml.v3"
)

//go:embed responses.yaml
var defaultResponses []byte

const calendarLinkToken = "{calendarLink}"

// Selector picks an auto-response for a classification.
type Selector struct {
	pools map[classifier.ObjectionType][]string
	pick  func(n int) int
}

// NewSelector loads the embedded response pools. pick chooses an index in
// [0, n); nil picks uniformly at random.
func NewSelector(pick func(n int) int) (*Selector, error) {
	return loadSelector(defaultResponses, pick)
}

func loadSelector(data []byte, pick func(n int) int) (*Selector, error) {
	var pools map[classifier.ObjectionType][]string
	if err := yaml.Unmarshal(data, &pools); err != nil {
		return nil, fmt.Errorf("parse response pools: %w", err)
	}
	if pick == nil {
		pick = rand.IntN
	}
	return &Selector{pools: pools, pick: pick}, nil
}

// Selection is a rendered response.
type Selection struct {
	Text             string
	SentCalendarLink bool
}

// Select renders a response for objectionType. Without a calendarLink only
// variants that do not carry the link are eligible. ok is false when no
// variant is eligible.
func (s *Selector) Select(objectionType classifier.ObjectionType, calendarLink string) (Selection, bool) {
	calendarLink = strings.TrimSpace(calendarLink)
	pool := s.pools[objectionType]
	if calendarLink == "" {
		pool = withoutLink(pool)
	}
	if len(pool) == 0 {
		return Selection{}, false
	}
	text := strings.ReplaceAll(pool[s.pick(len(pool))], calendarLinkToken, calendarLink)
	sent := calendarLink != "" && (objectionType == classifier.BookingConsent || objectionType == classifier.Positive ||
		strings.Contains(text, calendarLink))
	return Selection{Text: strings.TrimSpace(text), SentCalendarLink: sent}, true
}

func withoutLink(pool []string) []string {
	var out []string
	for _, v := range pool {
		if !strings.Contains(v, calendarLinkToken) {
			out = append(out, v)
		}
	}
	return out
}
