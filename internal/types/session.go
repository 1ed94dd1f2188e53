package types

import "time"

// SessionState represents the principal state of a call session
type SessionState string

const (
	StateDialing   SessionState = "dialing"
	StateRinging   SessionState = "ringing"
	StateConnected SessionState = "connected"
	StateOnHold    SessionState = "on_hold"
	StateWrapUp    SessionState = "wrap_up"
	StateClosed    SessionState = "closed"
)

// AllSessionStates lists every state in lifecycle order
var AllSessionStates = []SessionState{
	StateDialing,
	StateRinging,
	StateConnected,
	StateOnHold,
	StateWrapUp,
	StateClosed,
}

// IsTerminal returns true once the session can no longer change
func (s SessionState) IsTerminal() bool {
	return s == StateClosed
}

// HasMedia returns true for states where mute/hold/record make sense
func (s SessionState) HasMedia() bool {
	return s == StateConnected || s == StateOnHold
}

// Direction indicates who placed the call
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// CallSession is a point-in-time copy of a live session
type CallSession struct {
	SessionID       string       `json:"sessionId"`
	AgentID         string       `json:"agentId"`
	ContactID       string       `json:"contactId,omitempty"`
	ContactName     string       `json:"contactName,omitempty"`
	Direction       Direction    `json:"direction"`
	PhoneNumber     string       `json:"phoneNumber,omitempty"`
	State           SessionState `json:"state"`
	CreatedAt       time.Time    `json:"createdAt"`
	StartTime       *time.Time   `json:"startTime,omitempty"` // set on answer
	StateSince      time.Time    `json:"stateSince"`
	ElapsedSeconds  float64      `json:"elapsedSeconds"`
	HoldCount       int          `json:"holdCount"`
	HoldSeconds     float64      `json:"holdSeconds"`
	IsMuted         bool         `json:"isMuted"`
	IsOnHold        bool         `json:"isOnHold"`
	IsRecording     bool         `json:"isRecording"`
	RecordingRef    string       `json:"recordingRef,omitempty"`
	InferredOutcome Outcome      `json:"inferredOutcome,omitempty"`
}
