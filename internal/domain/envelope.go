package domain

// Envelope types exchanged on the viewer connection besides telemetry frames.
const (
	EnvelopeConnection = "connection"
	EnvelopeCommand    = "command"
)

// Envelope is a control message. The bridge sends "connection" once after
// accept; viewers may send "command", which is logged and otherwise ignored.
type Envelope struct {
	Type       string `json:"type"`
	Message    string `json:"message,omitempty"`
	Command    string `json:"command,omitempty"`
	ServerTime string `json:"serverTime,omitempty"`
}
