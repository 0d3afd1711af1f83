package suggestions

import (
	"context"
	"testing"

	"leadflow/platform/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPromptOrdersContext(t *testing.T) {
	prompt, err := buildPrompt(Request{
		Task:    TaskReplySuggestion,
		Context: map[string]any{"state": "responded", "objectionType": "TOO_BUSY", "confidence": 70},
		Input:   "  I'm slammed this month  ",
	})
	require.NoError(t, err)

	want := "Context:\n" +
		"- confidence: 70\n" +
		"- objectionType: \"TOO_BUSY\"\n" +
		"- state: \"responded\"\n" +
		"\nLead message:\nI'm slammed this month"
	assert.Equal(t, want, prompt)
}

func TestBuildPromptWithoutContext(t *testing.T) {
	prompt, err := buildPrompt(Request{Input: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Lead message:\nhello", prompt)
}

func TestNewGeneratorDisabled(t *testing.T) {
	g, err := NewGenerator(context.Background(), &config.Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestTemperatureFor(t *testing.T) {
	assert.Equal(t, float32(0.2), temperatureFor(PriorityHigh))
	assert.Equal(t, float32(0.5), temperatureFor(PriorityNormal))
}
