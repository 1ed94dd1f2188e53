package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dennisdiepolder/monti/softphone/internal/types"
)

// Operation names used in errors, events and metrics
const (
	OpRing         = "ring"
	OpAnswer       = "answer"
	OpHold         = "hold"
	OpResume       = "resume"
	OpMute         = "mute"
	OpRecord       = "record"
	OpEnd          = "end"
	OpDecline      = "decline"
	OpOpenWrapUp   = "open_wrapup"
	OpCancelWrapUp = "cancel_wrapup"
	OpComplete     = "complete_wrapup"
)

// Options configures a Session
type Options struct {
	Clock Clock
	// HoldCountsAsTalk keeps the clock running while on hold
	HoldCountsAsTalk bool
}

// Params describes a new session
type Params struct {
	SessionID   string
	AgentID     string
	ContactID   string
	Direction   types.Direction
	PhoneNumber string
	Initial     types.SessionState // StateDialing or StateRinging
}

// Change describes one accepted transition
type Change struct {
	Action  string
	From    types.SessionState
	To      types.SessionState
	Session types.CallSession
}

// Session owns the lifecycle of one call. Transitions are strictly
// sequential: a transition that arrives while another is running on the
// same session is rejected, not queued.
type Session struct {
	inFlight atomic.Bool

	mu           sync.Mutex
	id           string
	agentID      string
	contactID    string
	contactName  string
	direction    types.Direction
	phone        string
	state        types.SessionState
	createdAt    time.Time
	stateSince   time.Time
	answeredAt   time.Time
	watch        Stopwatch
	holdStart    time.Time
	holdCount    int
	holdTotal    time.Duration
	muted        bool
	onHold       bool
	recording    bool
	recordingRef string
	inferred     types.Outcome

	clock            Clock
	holdCountsAsTalk bool
}

// New creates a session in its initial state
func New(p Params, opts Options) *Session {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	initial := p.Initial
	if initial == "" {
		initial = types.StateDialing
	}
	now := clock()
	return &Session{
		id:               p.SessionID,
		agentID:          p.AgentID,
		contactID:        p.ContactID,
		direction:        p.Direction,
		phone:            p.PhoneNumber,
		state:            initial,
		createdAt:        now,
		stateSince:       now,
		clock:            clock,
		holdCountsAsTalk: opts.HoldCountsAsTalk,
	}
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// AgentID returns the owning agent
func (s *Session) AgentID() string { return s.agentID }

// State returns the current principal state
func (s *Session) State() types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the session as of now
func (s *Session) Snapshot() types.CallSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(s.clock())
}

// AttachContact enriches the session with directory data. It is not a
// transition and is accepted in any non-terminal state.
func (s *Session) AttachContact(c types.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsTerminal() {
		return
	}
	if s.contactID == "" {
		s.contactID = c.ContactID
	}
	s.contactName = c.Name
	if s.phone == "" {
		s.phone = c.Phone
	}
}

// Ring moves an outbound session from Dialing to Ringing
func (s *Session) Ring() (Change, error) {
	return s.transition(OpRing, func(now time.Time) error {
		if s.state != types.StateDialing {
			return s.invalid(OpRing)
		}
		s.setState(types.StateRinging, now)
		return nil
	})
}

// Answer connects a ringing session and starts the clock from zero
func (s *Session) Answer() (Change, error) {
	return s.transition(OpAnswer, func(now time.Time) error {
		if s.state != types.StateRinging {
			return s.invalid(OpAnswer)
		}
		s.answeredAt = now
		s.watch.Start(now)
		s.setState(types.StateConnected, now)
		return nil
	})
}

// Hold puts a connected session on hold
func (s *Session) Hold() (Change, error) {
	return s.transition(OpHold, func(now time.Time) error {
		if s.state != types.StateConnected {
			return s.invalid(OpHold)
		}
		s.onHold = true
		s.holdCount++
		s.holdStart = now
		if !s.holdCountsAsTalk {
			s.watch.Pause(now)
		}
		s.setState(types.StateOnHold, now)
		return nil
	})
}

// Resume returns a held session to Connected
func (s *Session) Resume() (Change, error) {
	return s.transition(OpResume, func(now time.Time) error {
		if s.state != types.StateOnHold {
			return s.invalid(OpResume)
		}
		s.endHold(now)
		s.watch.Resume(now)
		s.setState(types.StateConnected, now)
		return nil
	})
}

// ToggleMute flips the mute flag
func (s *Session) ToggleMute() (Change, error) {
	return s.transition(OpMute, func(now time.Time) error {
		if !s.state.HasMedia() {
			return s.invalid(OpMute)
		}
		s.muted = !s.muted
		return nil
	})
}

// ToggleRecord flips the recording flag. The first start assigns a recording reference.
func (s *Session) ToggleRecord() (Change, error) {
	return s.transition(OpRecord, func(now time.Time) error {
		if !s.state.HasMedia() {
			return s.invalid(OpRecord)
		}
		s.recording = !s.recording
		if s.recording && s.recordingRef == "" {
			s.recordingRef = fmt.Sprintf("recordings/%s.wav", s.id)
		}
		return nil
	})
}

// End moves any pre-wrap-up state into WrapUp and freezes the clock
func (s *Session) End() (Change, error) {
	return s.transition(OpEnd, func(now time.Time) error {
		switch s.state {
		case types.StateDialing, types.StateRinging:
			s.inferred = types.OutcomeNoAnswer
		case types.StateConnected, types.StateOnHold:
			s.endHold(now)
			s.inferred = types.OutcomeAnswered
		default:
			return s.invalid(OpEnd)
		}
		s.watch.Stop(now)
		s.setState(types.StateWrapUp, now)
		return nil
	})
}

// Fail moves the session into WrapUp with the given inferred outcome. Used
// when the transport gives up on a session before or during the call.
func (s *Session) Fail(outcome types.Outcome) (Change, error) {
	return s.transition(OpEnd, func(now time.Time) error {
		if s.state.IsTerminal() || s.state == types.StateWrapUp {
			return s.invalid(OpEnd)
		}
		s.endHold(now)
		s.watch.Stop(now)
		s.inferred = outcome
		s.setState(types.StateWrapUp, now)
		return nil
	})
}

// Decline closes a ringing session directly. The caller is responsible for
// producing the record.
func (s *Session) Decline(outcome types.Outcome) (Change, error) {
	return s.transition(OpDecline, func(now time.Time) error {
		if s.state != types.StateRinging {
			return s.invalid(OpDecline)
		}
		s.inferred = outcome
		s.watch.Stop(now)
		s.setState(types.StateClosed, now)
		return nil
	})
}

// CheckWrapUp verifies the session is waiting for wrap-up
func (s *Session) CheckWrapUp(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case types.StateWrapUp:
		return nil
	case types.StateClosed:
		return &SessionNotFoundError{SessionID: s.id}
	default:
		return s.invalid(op)
	}
}

// Close moves WrapUp to Closed. It succeeds exactly once; later calls
// report the session as gone.
func (s *Session) Close() (Change, error) {
	return s.transition(OpComplete, func(now time.Time) error {
		switch s.state {
		case types.StateWrapUp:
			s.setState(types.StateClosed, now)
			return nil
		case types.StateClosed:
			return &SessionNotFoundError{SessionID: s.id}
		default:
			return s.invalid(OpComplete)
		}
	})
}

// transition runs fn with exclusive ownership of the session
func (s *Session) transition(op string, fn func(now time.Time) error) (Change, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return Change{}, &InvalidStateTransitionError{
			SessionID: s.id,
			Op:        op,
			Reason:    ErrInFlight.Error(),
			InFlight:  true,
		}
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	from := s.state
	if err := fn(now); err != nil {
		return Change{}, err
	}
	return Change{
		Action:  op,
		From:    from,
		To:      s.state,
		Session: s.snapshotLocked(now),
	}, nil
}

func (s *Session) invalid(op string) error {
	return &InvalidStateTransitionError{SessionID: s.id, Op: op, State: s.state}
}

func (s *Session) setState(state types.SessionState, now time.Time) {
	s.state = state
	s.stateSince = now
}

func (s *Session) endHold(now time.Time) {
	if !s.onHold {
		return
	}
	s.holdTotal += nonNegative(now.Sub(s.holdStart))
	s.onHold = false
}

func (s *Session) snapshotLocked(now time.Time) types.CallSession {
	snap := types.CallSession{
		SessionID:       s.id,
		AgentID:         s.agentID,
		ContactID:       s.contactID,
		ContactName:     s.contactName,
		Direction:       s.direction,
		PhoneNumber:     s.phone,
		State:           s.state,
		CreatedAt:       s.createdAt,
		StateSince:      s.stateSince,
		ElapsedSeconds:  s.watch.Elapsed(now).Seconds(),
		HoldCount:       s.holdCount,
		HoldSeconds:     s.holdTotal.Seconds(),
		IsMuted:         s.muted,
		IsOnHold:        s.onHold,
		IsRecording:     s.recording,
		RecordingRef:    s.recordingRef,
		InferredOutcome: s.inferred,
	}
	if s.onHold {
		snap.HoldSeconds += nonNegative(now.Sub(s.holdStart)).Seconds()
	}
	if !s.answeredAt.IsZero() {
		t := s.answeredAt
		snap.StartTime = &t
	}
	return snap
}
