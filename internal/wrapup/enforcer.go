package wrapup

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dennisdiepolder/monti/softphone/internal/session"
	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	maxNotesLength    = 4000
	maxCategoryLength = 100
	stampTimeout      = 3 * time.Second
)

// Sessions is the registry view the enforcer needs
type Sessions interface {
	Get(sessionID string) (*session.Session, error)
	Remove(sessionID string)
}

// Ledger receives finished records
type Ledger interface {
	Append(rec types.CallRecord) error
}

// ContactStamper records the last call on a contact
type ContactStamper interface {
	StampLastCalled(ctx context.Context, contactID string, at time.Time) error
}

// AgentReleaser frees the agent once the record exists
type AgentReleaser interface {
	Release(agentID string, outcome types.Outcome, duration float64) types.Agent
}

// Result is what closing a session produced
type Result struct {
	Change session.Change
	Record types.CallRecord
	Agent  types.Agent
}

// Enforcer guarantees that no session closes without a valid record and
// that the agent is released only after the record exists
type Enforcer struct {
	sessions Sessions
	ledger   Ledger
	contacts ContactStamper
	agents   AgentReleaser
	clock    session.Clock
	logger   zerolog.Logger
}

// NewEnforcer creates an enforcer. A nil clock defaults to time.Now.
func NewEnforcer(sessions Sessions, ledger Ledger, contacts ContactStamper, agents AgentReleaser, clock session.Clock, logger zerolog.Logger) *Enforcer {
	if clock == nil {
		clock = time.Now
	}
	return &Enforcer{
		sessions: sessions,
		ledger:   ledger,
		contacts: contacts,
		agents:   agents,
		clock:    clock,
		logger:   logger.With().Str("component", "wrapup").Logger(),
	}
}

// OpenWrapUp returns a draft seeded with the inferred outcome
func (e *Enforcer) OpenWrapUp(sessionID string) (types.WrapUpDraft, error) {
	s, err := e.sessions.Get(sessionID)
	if err != nil {
		return types.WrapUpDraft{}, err
	}
	if err := s.CheckWrapUp(session.OpOpenWrapUp); err != nil {
		return types.WrapUpDraft{}, err
	}

	snap := s.Snapshot()
	draft := types.WrapUpDraft{
		SessionID: sessionID,
		Outcome:   snap.InferredOutcome,
	}
	if snap.InferredOutcome != "" && snap.InferredOutcome != types.OutcomeAnswered {
		draft.Disposition = types.DispositionNoContact
	}
	return draft, nil
}

// CancelWrapUp discards an open form. The session stays in WrapUp.
func (e *Enforcer) CancelWrapUp(sessionID string) error {
	s, err := e.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	return s.CheckWrapUp(session.OpCancelWrapUp)
}

// CompleteWrapUp validates the draft and closes the session. On a
// validation failure the session stays in WrapUp.
func (e *Enforcer) CompleteWrapUp(ctx context.Context, sessionID string, draft types.WrapUpDraft) (Result, error) {
	s, err := e.sessions.Get(sessionID)
	if err != nil {
		return Result{}, err
	}
	if err := s.CheckWrapUp(session.OpComplete); err != nil {
		return Result{}, err
	}
	if err := Validate(sessionID, draft); err != nil {
		return Result{}, err
	}

	change, err := s.Close()
	if err != nil {
		return Result{}, err
	}
	return e.finalize(ctx, change, draft), nil
}

// CloseUnanswered closes a ringing session that was declined or timed out.
// An empty outcome means no-answer. The record carries disposition
// no-contact and zero duration.
func (e *Enforcer) CloseUnanswered(ctx context.Context, sessionID string, outcome types.Outcome) (Result, error) {
	if outcome == "" {
		outcome = types.OutcomeNoAnswer
	}
	verr := &session.ValidationError{}
	switch {
	case !outcome.Valid():
		verr.Add("outcome", fmt.Sprintf("unknown outcome %q", outcome))
	case outcome == types.OutcomeAnswered:
		verr.Add("outcome", "an unanswered call cannot be recorded as answered")
	}
	if err := verr.OrNil(); err != nil {
		return Result{}, err
	}

	s, err := e.sessions.Get(sessionID)
	if err != nil {
		return Result{}, err
	}
	change, err := s.Decline(outcome)
	if err != nil {
		return Result{}, err
	}
	draft := types.WrapUpDraft{
		SessionID:   sessionID,
		Outcome:     outcome,
		Disposition: types.DispositionNoContact,
	}
	return e.finalize(ctx, change, draft), nil
}

// finalize runs after the session lock is released: append, stamp, free
// the slot, release the agent
func (e *Enforcer) finalize(ctx context.Context, change session.Change, draft types.WrapUpDraft) Result {
	snap := change.Session
	now := e.clock()
	rec := buildRecord(snap, draft, now)

	if err := e.ledger.Append(rec); err != nil {
		e.logger.Error().Err(err).Str("session_id", snap.SessionID).Msg("failed to append call record")
	}

	if rec.ContactID != "" && e.contacts != nil {
		stampCtx, cancel := context.WithTimeout(ctx, stampTimeout)
		if err := e.contacts.StampLastCalled(stampCtx, rec.ContactID, now); err != nil {
			e.logger.Warn().Err(err).
				Str("session_id", snap.SessionID).
				Str("contact_id", rec.ContactID).
				Msg("failed to stamp last called")
		}
		cancel()
	}

	e.sessions.Remove(snap.SessionID)
	agent := e.agents.Release(snap.AgentID, rec.Outcome, float64(rec.Duration))

	e.logger.Info().
		Str("session_id", snap.SessionID).
		Str("agent_id", snap.AgentID).
		Str("outcome", string(rec.Outcome)).
		Str("disposition", string(rec.Disposition)).
		Int64("duration", rec.Duration).
		Msg("session closed")

	return Result{Change: change, Record: rec, Agent: agent}
}

// Validate checks a draft and names every missing or invalid field
func Validate(sessionID string, draft types.WrapUpDraft) error {
	verr := &session.ValidationError{}

	if draft.SessionID != "" && draft.SessionID != sessionID {
		verr.Add("sessionId", "does not match the session being closed")
	}
	switch {
	case draft.Outcome == "":
		verr.Add("outcome", "required")
	case !draft.Outcome.Valid():
		verr.Add("outcome", fmt.Sprintf("unknown outcome %q", draft.Outcome))
	}
	switch {
	case draft.Disposition == "":
		verr.Add("disposition", "required")
	case !draft.Disposition.Valid():
		verr.Add("disposition", fmt.Sprintf("unknown disposition %q", draft.Disposition))
	}
	if len(draft.Category) > maxCategoryLength {
		verr.Add("category", fmt.Sprintf("longer than %d characters", maxCategoryLength))
	}
	if len(draft.Notes) > maxNotesLength {
		verr.Add("notes", fmt.Sprintf("longer than %d characters", maxNotesLength))
	}
	return verr.OrNil()
}

func buildRecord(snap types.CallSession, draft types.WrapUpDraft, completed time.Time) types.CallRecord {
	start := snap.CreatedAt
	if snap.StartTime != nil {
		start = *snap.StartTime
	}
	duration := int64(math.Round(snap.ElapsedSeconds))
	if draft.Outcome != types.OutcomeAnswered && snap.StartTime == nil {
		duration = 0
	}

	return types.CallRecord{
		DateKey:      types.DateKey(completed),
		RecordID:     uuid.NewString(),
		SessionID:    snap.SessionID,
		AgentID:      snap.AgentID,
		ContactID:    snap.ContactID,
		Direction:    snap.Direction,
		PhoneNumber:  snap.PhoneNumber,
		StartTime:    start.UTC().Format(time.RFC3339),
		CompleteTime: completed.UTC().Format(time.RFC3339),
		Duration:     duration,
		HoldCount:    snap.HoldCount,
		HoldTime:     snap.HoldSeconds,
		Outcome:      draft.Outcome,
		Disposition:  draft.Disposition,
		Category:     draft.Category,
		Notes:        draft.Notes,
		FollowUp:     draft.FollowUp,
		RecordingRef: snap.RecordingRef,
	}
}
