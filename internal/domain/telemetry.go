package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Phase names a segment of the synthetic activity timeline.
type Phase string

const (
	PhaseRest     Phase = "REST"
	PhaseWarmUp   Phase = "WARM-UP"
	PhaseExercise Phase = "EXERCISE"
	PhaseCoolDown Phase = "COOL-DOWN"
	PhaseRecovery Phase = "RECOVERY"
)

// ServerTimeLayout is the wire layout of serverTime.
const ServerTimeLayout = time.RFC3339Nano

// Reading is one telemetry sample as produced by a source. Range checks are
// the source's job; the bridge forwards whatever it receives.
type Reading struct {
	HR      int
	RR      int
	Sweat   int
	LeadOff bool

	// Elapsed and Phase are only set by the synthetic source.
	Elapsed *int
	Phase   Phase
}

// Frame is the JSON object sent to viewers.
type Frame struct {
	HR         int    `json:"hr"`
	RR         int    `json:"rr"`
	Sweat      int    `json:"sweat"`
	LeadOff    bool   `json:"leadOff"`
	Timestamp  *int   `json:"timestamp,omitempty"`
	ServerTime string `json:"serverTime"`
	Phase      Phase  `json:"phase,omitempty"`
}

// NewFrame stamps a reading with the bridge emission time.
func NewFrame(r Reading, serverTime time.Time) Frame {
	return Frame{
		HR:         r.HR,
		RR:         r.RR,
		Sweat:      r.Sweat,
		LeadOff:    r.LeadOff,
		Timestamp:  r.Elapsed,
		ServerTime: serverTime.UTC().Format(ServerTimeLayout),
		Phase:      r.Phase,
	}
}

// Reading strips the bridge-assigned fields again.
func (f Frame) Reading() Reading {
	return Reading{
		HR:      f.HR,
		RR:      f.RR,
		Sweat:   f.Sweat,
		LeadOff: f.LeadOff,
		Elapsed: f.Timestamp,
		Phase:   f.Phase,
	}
}

// Encode marshals the frame to its wire form.
func (f Frame) Encode() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}

// DecodeFrame parses a frame previously produced by Encode.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	return f, nil
}
