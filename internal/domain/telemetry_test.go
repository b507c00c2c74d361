package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_RoundTripPreservesVitals(t *testing.T) {
	elapsed := 0
	tests := []struct {
		name    string
		reading Reading
	}{
		{"hardware reading", Reading{HR: 72, RR: 14, Sweat: 0, LeadOff: false}},
		{"lead off", Reading{HR: 50, RR: 10, Sweat: 3, LeadOff: true}},
		{"synthetic at zero elapsed", Reading{HR: 180, RR: 35, Sweat: 1, Elapsed: &elapsed, Phase: PhaseRest}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := NewFrame(tt.reading, time.Now()).Encode()
			require.NoError(t, err)

			frame, err := DecodeFrame(data)
			require.NoError(t, err)

			got := frame.Reading()
			assert.Equal(t, tt.reading.HR, got.HR)
			assert.Equal(t, tt.reading.RR, got.RR)
			assert.Equal(t, tt.reading.Sweat, got.Sweat)
			assert.Equal(t, tt.reading.LeadOff, got.LeadOff)
			assert.Equal(t, tt.reading.Phase, got.Phase)
		})
	}
}

func TestFrame_SyntheticFieldsOnlyWhenPresent(t *testing.T) {
	serverTime := time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)

	data, err := NewFrame(Reading{HR: 80, RR: 16, Sweat: 1}, serverTime).Encode()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "timestamp")
	assert.NotContains(t, raw, "phase")
	assert.Equal(t, "2026-03-01T12:00:00.0000005Z", raw["serverTime"])
	assert.Equal(t, false, raw["leadOff"])

	elapsed := 0
	data, err = NewFrame(Reading{HR: 80, RR: 16, Elapsed: &elapsed, Phase: PhaseRest}, serverTime).Encode()
	require.NoError(t, err)

	raw = nil
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, 0.0, raw["timestamp"])
	assert.Equal(t, "REST", raw["phase"])
}

func TestDecodeFrame_Malformed(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"hr":`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}
