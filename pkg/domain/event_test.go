package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriority_String(t *testing.T) {
	assert.Equal(t, "LOW", PriorityLow.String())
	assert.Equal(t, "NORMAL", PriorityNormal.String())
	assert.Equal(t, "HIGH", PriorityHigh.String())
	assert.Equal(t, "CRITICAL", PriorityCritical.String())
}

func TestPriority_Ordering(t *testing.T) {
	assert.Less(t, int(PriorityLow), int(PriorityNormal))
	assert.Less(t, int(PriorityNormal), int(PriorityHigh))
	assert.Less(t, int(PriorityHigh), int(PriorityCritical))
}

func TestEvent_GPSPayloadRoundTrip(t *testing.T) {
	payload := GPSPayload{AgentID: "agent-1", Lat: 41.3, Lng: 69.2}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	e := Event{Kind: EventGPS, Priority: PriorityNormal, Sequence: 1, Payload: raw}

	var decoded GPSPayload
	require.NoError(t, json.Unmarshal(e.Payload, &decoded))
	assert.Equal(t, payload, decoded)
}
