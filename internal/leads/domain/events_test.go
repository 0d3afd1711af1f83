package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDedupeKeyUsesNaturalKey(t *testing.T) {
	leadID := uuid.MustParse("6a1f2c1e-0b55-4d8e-9f34-2c9f1d0e7a11")
	at := time.Unix(1700000000, 0)

	key := DedupeKey(leadID, EventSMSReceived, map[string]any{"providerMessageId": "SM123"}, at)
	assert.Equal(t, "6a1f2c1e-0b55-4d8e-9f34-2c9f1d0e7a11:SMS_RECEIVED:SM123", key)

	again := DedupeKey(leadID, EventSMSReceived, map[string]any{"providerMessageId": "SM123"}, at.Add(time.Hour))
	assert.Equal(t, key, again)
}

func TestDedupeKeyFallsBackToTimestamp(t *testing.T) {
	leadID := uuid.New()
	a := DedupeKey(leadID, EventNurtureEnrolled, nil, time.Unix(0, 100))
	b := DedupeKey(leadID, EventNurtureEnrolled, nil, time.Unix(0, 200))
	assert.NotEqual(t, a, b)
}

func TestNaturalKeyPrecedence(t *testing.T) {
	payload := map[string]any{"naturalKey": "n", "messageId": "m", "providerMessageId": ""}
	assert.Equal(t, "m", NaturalKey(payload))
	assert.Equal(t, "42", NaturalKey(map[string]any{"messageId": float64(42)}))
	assert.Equal(t, "", NaturalKey(map[string]any{"body": "hi"}))
}
