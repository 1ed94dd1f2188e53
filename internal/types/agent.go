package types

import "time"

// AgentStatus represents the availability of an agent
type AgentStatus string

const (
	StatusAvailable AgentStatus = "available"
	StatusBusy      AgentStatus = "busy"
	StatusBreak     AgentStatus = "break"
	StatusOffline   AgentStatus = "offline"
)

// AllAgentStatuses lists every defined status
var AllAgentStatuses = []AgentStatus{
	StatusAvailable,
	StatusBusy,
	StatusBreak,
	StatusOffline,
}

// Valid reports whether s is a defined status
func (s AgentStatus) Valid() bool {
	for _, known := range AllAgentStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Agent is the coordinator-owned view of one agent
type Agent struct {
	AgentID          string       `json:"agentId"`
	DisplayName      string       `json:"displayName"`
	Status           AgentStatus  `json:"status"`
	StatusSince      time.Time    `json:"statusSince"`
	Active           bool         `json:"active"`
	TotalCalls       int          `json:"totalCalls"`
	SuccessfulCalls  int          `json:"successfulCalls"`
	AvgCallDuration  float64      `json:"avgCallDuration"` // seconds
	CurrentSessionID string       `json:"currentSessionId,omitempty"`
	PendingStatus    AgentStatus  `json:"pendingStatus,omitempty"` // manual change queued until the call closes
	Alerts           []AgentAlert `json:"alerts,omitempty"`
}

// AlertSeverity represents the severity of an agent alert
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// AgentAlert represents an alert condition for an agent
type AgentAlert struct {
	Rule     string        `json:"rule"`
	Severity AlertSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// RosterEntry is a single agent in a roster payload or seed file
type RosterEntry struct {
	AgentID     string `json:"agentId" yaml:"id"`
	DisplayName string `json:"displayName" yaml:"name"`
}
