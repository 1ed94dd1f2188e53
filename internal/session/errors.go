package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dennisdiepolder/monti/softphone/internal/types"
)

// Sentinels for errors.Is. The concrete error types below match them.
var (
	ErrAgentBusy         = errors.New("agent already owns a live session")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrValidation        = errors.New("validation failed")
	ErrSessionNotFound   = errors.New("session not found")

	// ErrInFlight also matches ErrInvalidTransition
	ErrInFlight = errors.New("another transition is in flight")
)

// AgentBusyError is returned when an agent's slot is already occupied
type AgentBusyError struct {
	AgentID   string
	SessionID string // the live session holding the slot
}

func (e *AgentBusyError) Error() string {
	return fmt.Sprintf("agent %s is busy with session %s", e.AgentID, e.SessionID)
}

func (e *AgentBusyError) Is(target error) bool { return target == ErrAgentBusy }

// InvalidStateTransitionError is returned when an operation is not legal in the current state
type InvalidStateTransitionError struct {
	SessionID string
	Op        string
	State     types.SessionState
	Reason    string
	InFlight  bool
}

func (e *InvalidStateTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s session %s: %s", e.Op, e.SessionID, e.Reason)
	}
	return fmt.Sprintf("cannot %s session %s in state %s", e.Op, e.SessionID, e.State)
}

func (e *InvalidStateTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition || (e.InFlight && target == ErrInFlight)
}

// FieldError names one rejected field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed validation
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Add appends a field error
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// FieldNames returns the rejected field names in order
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return names
}

// OrNil returns nil when no field failed
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// SessionNotFoundError is returned for unknown or already closed sessions
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session %s not found", e.SessionID)
}

func (e *SessionNotFoundError) Is(target error) bool { return target == ErrSessionNotFound }

// Error kinds reported by Kind
const (
	KindAgentBusy         = "agent_busy"
	KindInvalidTransition = "invalid_transition"
	KindValidation        = "validation"
	KindNotFound          = "not_found"
	KindInternal          = "internal"
)

// Kind classifies err into one of the Kind constants
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrAgentBusy):
		return KindAgentBusy
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrSessionNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
