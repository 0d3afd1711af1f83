package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"classify", "yes", "please"})

	require.NoError(t, cmd.Execute())

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "BOOKING_CONSENT", got["objectionType"])
	assert.Equal(t, "SEND_CALENDAR", got["intent"])
	assert.Equal(t, true, got["bookingConsent"])
}

func TestClassifyCommandRequiresMessage(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"classify"})

	assert.Error(t, cmd.Execute())
}

func TestRootOptionsIDs(t *testing.T) {
	opts := &rootOptions{teamID: "not-a-uuid", leadID: "3f1e0c1a-7d9b-4c55-9a51-0c2f3b7e6a10"}
	_, _, err := opts.ids()
	assert.ErrorContains(t, err, "--team")

	opts.teamID = "8b4f2c9e-1a3d-4e6f-8a7b-2c5d9e0f1a2b"
	teamID, leadID, err := opts.ids()
	require.NoError(t, err)
	assert.Equal(t, "8b4f2c9e-1a3d-4e6f-8a7b-2c5d9e0f1a2b", teamID.String())
	assert.Equal(t, "3f1e0c1a-7d9b-4c55-9a51-0c2f3b7e6a10", leadID.String())
}
