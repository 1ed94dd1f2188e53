package types

import "time"

// Message types pushed to dashboard clients
const (
	MessageSessionEvent = "session_event"
	MessageSessionTick  = "session_tick"
	MessageCallRecord   = "call_record"
	MessageSnapshot     = "snapshot"
)

// SessionEvent is emitted on every accepted lifecycle transition or flag change
type SessionEvent struct {
	Type      string       `json:"type"` // "session_event"
	Action    string       `json:"action"`
	SessionID string       `json:"sessionId"`
	AgentID   string       `json:"agentId"`
	From      SessionState `json:"from"`
	To        SessionState `json:"to"`
	Session   CallSession  `json:"session"`
	Timestamp time.Time    `json:"timestamp"`
}

// SessionTick carries the elapsed clock of a live session for duration display
type SessionTick struct {
	Type           string       `json:"type"` // "session_tick"
	SessionID      string       `json:"sessionId"`
	AgentID        string       `json:"agentId"`
	State          SessionState `json:"state"`
	ElapsedSeconds float64      `json:"elapsedSeconds"`
	ServerTime     int64        `json:"serverTime"`
}

// CallRecordMessage wraps a newly appended ledger record
type CallRecordMessage struct {
	Type   string     `json:"type"` // "call_record"
	Record CallRecord `json:"record"`
}

// Snapshot is the periodic dashboard payload
type Snapshot struct {
	Type      string              `json:"type"` // "snapshot"
	Timestamp time.Time           `json:"timestamp"`
	Agents    []Agent             `json:"agents"`
	Sessions  []CallSession       `json:"sessions"`
	Analytics Analytics           `json:"analytics"`
	Events    []SessionEvent      `json:"events,omitempty"` // lifecycle events since the previous snapshot
	Summary   map[AgentStatus]int `json:"summary"`
}

// TransportEvent is a signal from the telephony side about a session
type TransportEvent struct {
	SessionID string    `json:"sessionId"`
	Type      string    `json:"type"` // "ringing", "answered" or "hangup"
	Timestamp time.Time `json:"timestamp"`
}

// Transport event types
const (
	TransportRinging  = "ringing"
	TransportAnswered = "answered"
	TransportHangup   = "hangup"
)
