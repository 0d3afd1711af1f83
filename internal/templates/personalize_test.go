package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPersonalize(t *testing.T) {
	body := "Hi {{firstName}} {{lastName}}, quick note for {{company}}: {{link}}"

	got := Personalize(body, Fields{FirstName: "Dana", LastName: "Reyes", Company: "Acme", Link: "https://x.test/a"})
	assert.Equal(t, "Hi Dana Reyes, quick note for Acme: https://x.test/a", got)

	got = Personalize(body, Fields{})
	assert.Equal(t, "Hi there, quick note for your company:", got)
}

func TestPersonalizeDropsMissingFieldsCleanly(t *testing.T) {
	cases := []struct {
		name string
		body string
		f    Fields
		want string
	}{
		{"last name between words", "Dear {{firstName}} {{lastName}} at {{company}}", Fields{FirstName: "Dana"}, "Dear Dana at your company"},
		{"last name before comma", "Hi {{firstName}} {{lastName}}, welcome", Fields{FirstName: "Dana"}, "Hi Dana, welcome"},
		{"missing email mid sentence", "We will write to {{email}} soon", Fields{}, "We will write to soon"},
		{"adjacent to text", "Ref:{{email}}!", Fields{}, "Ref:!"},
		{"keeps line breaks", "Hi {{firstName}},\n\nBook here {{link}}\nThanks", Fields{FirstName: "Dana"}, "Hi Dana,\n\nBook here\nThanks"},
		{"present values untouched", "Hi  {{firstName}}", Fields{FirstName: "Dana"}, "Hi  Dana"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Personalize(tc.body, tc.f))
		})
	}
}

func TestPersonalizeEmailToken(t *testing.T) {
	assert.Equal(t, "We'll write to dana@acme.test", Personalize("We'll write to {{email}}", Fields{Email: "dana@acme.test"}))
}
