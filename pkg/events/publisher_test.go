package events

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateIfNeeded_SmallPayloadUnchanged(t *testing.T) {
	payload := `{"event":"ticket:update","ticket_id":"t-1","state":"ready"}`
	out, err := truncateIfNeeded(payload)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestTruncateIfNeeded_OversizedPayloadBecomesEnvelope(t *testing.T) {
	big := TicketActivityPayload{
		Event:     EventTicketActivity,
		TicketID:  "t-1",
		Kind:      "verification_feedback",
		Payload:   map[string]any{"feedback": strings.Repeat("criterion not met; ", 600)},
		DBEventID: 42,
		Timestamp: "2026-01-01T00:00:00Z",
	}
	raw, err := json.Marshal(big)
	require.NoError(t, err)
	require.Greater(t, len(raw), 7900, "test payload must exceed the NOTIFY limit")

	out, err := truncateIfNeeded(string(raw))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), 7900)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &envelope))
	assert.Equal(t, EventTicketActivity, envelope["event"])
	assert.Equal(t, "t-1", envelope["ticket_id"])
	assert.Equal(t, true, envelope["truncated"])
	assert.Equal(t, float64(42), envelope["db_event_id"])
	assert.NotContains(t, envelope, "payload", "full payload must be dropped from the envelope")
}

func TestTruncateIfNeeded_SessionRoutingPreserved(t *testing.T) {
	big := SessionUpdatePayload{
		Event:     EventSessionUpdate,
		SessionID: "s-9",
		Status:    "building",
		Extras:    map[string]any{"detail": strings.Repeat("x", 9000)},
	}
	raw, err := json.Marshal(big)
	require.NoError(t, err)

	out, err := truncateIfNeeded(string(raw))
	require.NoError(t, err)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &envelope))
	assert.Equal(t, "s-9", envelope["session_id"])
	assert.NotContains(t, envelope, "ticket_id")
}
