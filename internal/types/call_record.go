package types

import "time"

// Outcome is the telephony result of a call attempt
type Outcome string

const (
	OutcomeAnswered     Outcome = "answered"
	OutcomeNoAnswer     Outcome = "no-answer"
	OutcomeBusy         Outcome = "busy"
	OutcomeVoicemail    Outcome = "voicemail"
	OutcomeDisconnected Outcome = "disconnected"
)

// AllOutcomes lists every accepted outcome
var AllOutcomes = []Outcome{
	OutcomeAnswered,
	OutcomeNoAnswer,
	OutcomeBusy,
	OutcomeVoicemail,
	OutcomeDisconnected,
}

// Valid reports whether o is one of AllOutcomes
func (o Outcome) Valid() bool {
	for _, known := range AllOutcomes {
		if o == known {
			return true
		}
	}
	return false
}

// Disposition is the business result of a call
type Disposition string

const (
	DispositionInterested    Disposition = "interested"
	DispositionNotInterested Disposition = "not-interested"
	DispositionCallback      Disposition = "callback"
	DispositionSale          Disposition = "sale"
	DispositionNoContact     Disposition = "no-contact"
)

// AllDispositions lists every accepted disposition
var AllDispositions = []Disposition{
	DispositionInterested,
	DispositionNotInterested,
	DispositionCallback,
	DispositionSale,
	DispositionNoContact,
}

// Valid reports whether d is one of AllDispositions
func (d Disposition) Valid() bool {
	for _, known := range AllDispositions {
		if d == known {
			return true
		}
	}
	return false
}

// WrapUpDraft holds the operator's post-call data until it is submitted
type WrapUpDraft struct {
	SessionID   string      `json:"sessionId"`
	Outcome     Outcome     `json:"outcome"`
	Disposition Disposition `json:"disposition"`
	Category    string      `json:"category,omitempty"`
	Notes       string      `json:"notes,omitempty"`
	FollowUp    bool        `json:"followUp"`
}

// DateKey formats t as the UTC day used to partition records
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// CallRecord is the immutable result of a closed session
type CallRecord struct {
	DateKey      string      `json:"dateKey" dynamodbav:"DateKey"`     // YYYY-MM-DD (partition key)
	RecordID     string      `json:"recordId" dynamodbav:"RecordID"`   // sort key
	SessionID    string      `json:"sessionId" dynamodbav:"SessionID"` // one record per session
	AgentID      string      `json:"agentId" dynamodbav:"AgentID"`
	ContactID    string      `json:"contactId,omitempty" dynamodbav:"ContactID"`
	Direction    Direction   `json:"direction" dynamodbav:"Direction"`
	PhoneNumber  string      `json:"phoneNumber,omitempty" dynamodbav:"PhoneNumber"`
	StartTime    string      `json:"startTime" dynamodbav:"StartTime"`       // RFC3339
	CompleteTime string      `json:"completeTime" dynamodbav:"CompleteTime"` // RFC3339
	Duration     int64       `json:"duration" dynamodbav:"Duration"`         // seconds
	HoldCount    int         `json:"holdCount" dynamodbav:"HoldCount"`
	HoldTime     float64     `json:"holdTime" dynamodbav:"HoldTime"` // seconds
	Outcome      Outcome     `json:"outcome" dynamodbav:"Outcome"`
	Disposition  Disposition `json:"disposition" dynamodbav:"Disposition"`
	Category     string      `json:"category,omitempty" dynamodbav:"Category"`
	Notes        string      `json:"notes,omitempty" dynamodbav:"Notes"`
	FollowUp     bool        `json:"followUp" dynamodbav:"FollowUp"`
	RecordingRef string      `json:"recordingRef,omitempty" dynamodbav:"RecordingRef"`
}

// AgentDailyStats is an agent's per-day rollup of closed calls
type AgentDailyStats struct {
	AgentID         string  `json:"agentId" dynamodbav:"AgentID"` // partition key
	Date            string  `json:"date" dynamodbav:"Date"`       // YYYY-MM-DD (sort key)
	TotalCalls      int     `json:"totalCalls" dynamodbav:"TotalCalls"`
	AnsweredCalls   int     `json:"answeredCalls" dynamodbav:"AnsweredCalls"`
	Sales           int     `json:"sales" dynamodbav:"Sales"`
	TotalTalkTime   float64 `json:"totalTalkTime" dynamodbav:"TotalTalkTime"` // seconds
	TotalHoldTime   float64 `json:"totalHoldTime" dynamodbav:"TotalHoldTime"` // seconds
	AvgCallDuration float64 `json:"avgCallDuration" dynamodbav:"AvgCallDuration"`
}

// RecordFilter narrows ledger queries. Empty fields match everything.
type RecordFilter struct {
	AgentID   string `json:"agentId,omitempty"`
	ContactID string `json:"contactId,omitempty"`
	DateKey   string `json:"dateKey,omitempty"`
}

// Match reports whether r passes the filter
func (f RecordFilter) Match(r CallRecord) bool {
	if f.AgentID != "" && r.AgentID != f.AgentID {
		return false
	}
	if f.ContactID != "" && r.ContactID != f.ContactID {
		return false
	}
	if f.DateKey != "" && r.DateKey != f.DateKey {
		return false
	}
	return true
}

// Analytics is the aggregate view over a set of call records
type Analytics struct {
	TotalCalls    int                 `json:"totalCalls"`
	AnsweredCalls int                 `json:"answeredCalls"`
	AnswerRate    float64             `json:"answerRate"`  // 0..1
	AvgDuration   float64             `json:"avgDuration"` // seconds
	ByOutcome     map[Outcome]int     `json:"byOutcome"`
	ByDisposition map[Disposition]int `json:"byDisposition"`
}
