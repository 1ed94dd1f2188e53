package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/softphone/internal/types"
)

// fakeClock is advanced manually by tests
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestSession(clock *fakeClock, holdCountsAsTalk bool) *Session {
	return New(Params{
		SessionID: "s-1",
		AgentID:   "agent-1",
		ContactID: "c-1",
		Direction: types.DirectionOutbound,
		Initial:   types.StateDialing,
	}, Options{Clock: clock.Now, HoldCountsAsTalk: holdCountsAsTalk})
}

// sessionIn drives a fresh session into the requested state
func sessionIn(t *testing.T, state types.SessionState) *Session {
	t.Helper()
	s := newTestSession(newFakeClock(), true)
	steps := map[types.SessionState][]func() (Change, error){
		types.StateDialing:   nil,
		types.StateRinging:   {s.Ring},
		types.StateConnected: {s.Ring, s.Answer},
		types.StateOnHold:    {s.Ring, s.Answer, s.Hold},
		types.StateWrapUp:    {s.Ring, s.Answer, s.End},
		types.StateClosed:    {s.Ring, s.Answer, s.End, s.Close},
	}
	for _, step := range steps[state] {
		if _, err := step(); err != nil {
			t.Fatalf("driving to %s: %v", state, err)
		}
	}
	if got := s.State(); got != state {
		t.Fatalf("expected state %s, got %s", state, got)
	}
	return s
}

func TestDurationIncludesHoldByDefault(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(clock, true)

	mustChange(t, s.Ring)
	mustChange(t, s.Answer)
	clock.Advance(12 * time.Second)
	mustChange(t, s.Hold)
	clock.Advance(5 * time.Second)
	mustChange(t, s.Resume)
	clock.Advance(8 * time.Second)
	change := mustChange(t, s.End)

	if change.To != types.StateWrapUp {
		t.Errorf("expected wrap_up, got %s", change.To)
	}
	if change.Session.ElapsedSeconds != 25 {
		t.Errorf("expected 25s elapsed, got %v", change.Session.ElapsedSeconds)
	}
	if change.Session.HoldSeconds != 5 {
		t.Errorf("expected 5s hold, got %v", change.Session.HoldSeconds)
	}
	if change.Session.HoldCount != 1 {
		t.Errorf("expected 1 hold, got %d", change.Session.HoldCount)
	}
	if change.Session.InferredOutcome != types.OutcomeAnswered {
		t.Errorf("expected inferred outcome answered, got %s", change.Session.InferredOutcome)
	}

	// Frozen after End
	clock.Advance(time.Minute)
	if got := s.Snapshot().ElapsedSeconds; got != 25 {
		t.Errorf("expected clock frozen at 25s, got %v", got)
	}
}

func TestDurationExcludesHoldWhenConfigured(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(clock, false)

	mustChange(t, s.Ring)
	mustChange(t, s.Answer)
	clock.Advance(12 * time.Second)
	mustChange(t, s.Hold)
	clock.Advance(5 * time.Second)
	if got := s.Snapshot().ElapsedSeconds; got != 12 {
		t.Errorf("expected clock paused at 12s during hold, got %v", got)
	}
	mustChange(t, s.Resume)
	clock.Advance(8 * time.Second)
	change := mustChange(t, s.End)

	if change.Session.ElapsedSeconds != 20 {
		t.Errorf("expected 20s elapsed, got %v", change.Session.ElapsedSeconds)
	}
	if change.Session.HoldSeconds != 5 {
		t.Errorf("expected 5s hold, got %v", change.Session.HoldSeconds)
	}
}

func TestElapsedIsMonotonic(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(clock, true)
	mustChange(t, s.Ring)
	mustChange(t, s.Answer)

	prev := 0.0
	actions := []func() (Change, error){s.Hold, s.Resume, s.ToggleMute, s.Hold, s.ToggleRecord, s.Resume}
	for i, action := range actions {
		clock.Advance(time.Duration(i+1) * time.Second)
		mustChange(t, action)
		got := s.Snapshot().ElapsedSeconds
		if got < prev {
			t.Fatalf("elapsed went backwards: %v after %v", got, prev)
		}
		prev = got
	}
}

func TestClockStartsAtAnswer(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(clock, true)

	clock.Advance(3 * time.Second)
	mustChange(t, s.Ring)
	clock.Advance(4 * time.Second)
	if got := s.Snapshot().ElapsedSeconds; got != 0 {
		t.Errorf("expected 0 before answer, got %v", got)
	}
	change := mustChange(t, s.Answer)
	if change.Session.StartTime == nil || !change.Session.StartTime.Equal(clock.Now()) {
		t.Errorf("expected start time at answer, got %v", change.Session.StartTime)
	}
}

func TestStateGuards(t *testing.T) {
	type op struct {
		name string
		call func(s *Session) (Change, error)
	}
	ops := []op{
		{OpRing, (*Session).Ring},
		{OpAnswer, (*Session).Answer},
		{OpHold, (*Session).Hold},
		{OpResume, (*Session).Resume},
		{OpMute, (*Session).ToggleMute},
		{OpRecord, (*Session).ToggleRecord},
		{OpEnd, (*Session).End},
		{OpDecline, func(s *Session) (Change, error) { return s.Decline(types.OutcomeNoAnswer) }},
	}

	allowed := map[types.SessionState]map[string]bool{
		types.StateDialing:   {OpRing: true, OpEnd: true},
		types.StateRinging:   {OpAnswer: true, OpEnd: true, OpDecline: true},
		types.StateConnected: {OpHold: true, OpMute: true, OpRecord: true, OpEnd: true},
		types.StateOnHold:    {OpResume: true, OpMute: true, OpRecord: true, OpEnd: true},
		types.StateWrapUp:    {},
		types.StateClosed:    {},
	}

	for _, state := range types.AllSessionStates {
		for _, o := range ops {
			t.Run(string(state)+"/"+o.name, func(t *testing.T) {
				s := sessionIn(t, state)
				_, err := o.call(s)
				if allowed[state][o.name] {
					if err != nil {
						t.Fatalf("expected %s allowed in %s, got %v", o.name, state, err)
					}
					return
				}
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("expected invalid transition for %s in %s, got %v", o.name, state, err)
				}
				if s.State() != state {
					t.Errorf("rejected op changed state from %s to %s", state, s.State())
				}
			})
		}
	}
}

func TestMuteAndRecordAreFlags(t *testing.T) {
	s := sessionIn(t, types.StateConnected)

	change := mustChange(t, s.ToggleMute)
	if change.To != types.StateConnected || !change.Session.IsMuted {
		t.Errorf("expected muted flag in connected state, got %+v", change)
	}
	change = mustChange(t, s.ToggleRecord)
	if !change.Session.IsRecording {
		t.Error("expected recording flag set")
	}
	if change.Session.RecordingRef != "recordings/s-1.wav" {
		t.Errorf("unexpected recording ref %q", change.Session.RecordingRef)
	}
	change = mustChange(t, s.ToggleRecord)
	if change.Session.IsRecording {
		t.Error("expected recording flag cleared")
	}
	if change.Session.RecordingRef == "" {
		t.Error("recording ref should survive stopping the recording")
	}
	change = mustChange(t, s.ToggleMute)
	if change.Session.IsMuted {
		t.Error("expected mute cleared")
	}
}

func TestEndFromRingingInfersNoAnswer(t *testing.T) {
	s := sessionIn(t, types.StateRinging)
	change := mustChange(t, s.End)
	if change.Session.InferredOutcome != types.OutcomeNoAnswer {
		t.Errorf("expected no-answer, got %s", change.Session.InferredOutcome)
	}
	if change.Session.ElapsedSeconds != 0 {
		t.Errorf("expected 0 elapsed, got %v", change.Session.ElapsedSeconds)
	}
}

func TestCloseIsIdempotentlyRejected(t *testing.T) {
	s := sessionIn(t, types.StateWrapUp)

	if _, err := s.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	_, err := s.Close()
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found on second close, got %v", err)
	}
	if err := s.CheckWrapUp(OpOpenWrapUp); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected session not found after close, got %v", err)
	}
}

func TestCloseRequiresWrapUp(t *testing.T) {
	s := sessionIn(t, types.StateConnected)
	if _, err := s.Close(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestInFlightTransitionRejected(t *testing.T) {
	s := sessionIn(t, types.StateConnected)

	// Simulate a transition already holding the session
	s.inFlight.Store(true)
	_, err := s.Hold()
	var invalid *InvalidStateTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidStateTransitionError, got %v", err)
	}
	if invalid.Reason == "" || !errors.Is(err, ErrInFlight) {
		t.Errorf("expected in-flight rejection, got %v", err)
	}
	s.inFlight.Store(false)

	// A plain guard failure is not an in-flight rejection
	if _, err := s.Answer(); errors.Is(err, ErrInFlight) || !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected plain invalid transition, got %v", err)
	}

	if _, err := s.Hold(); err != nil {
		t.Fatalf("hold after release: %v", err)
	}
}

func TestConcurrentTransitionsNeverCorruptState(t *testing.T) {
	s := sessionIn(t, types.StateConnected)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.ToggleMute()
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	if s.State() != types.StateConnected {
		t.Errorf("expected connected, got %s", s.State())
	}
}

func TestAttachContact(t *testing.T) {
	s := New(Params{SessionID: "s-2", AgentID: "a", Direction: types.DirectionInbound, Initial: types.StateRinging}, Options{})
	s.AttachContact(types.Contact{ContactID: "c-9", Name: "Ada", Phone: "+4930123"})

	snap := s.Snapshot()
	if snap.ContactID != "c-9" || snap.ContactName != "Ada" || snap.PhoneNumber != "+4930123" {
		t.Errorf("contact not attached: %+v", snap)
	}
}

func TestStopwatch(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var w Stopwatch

	if w.Elapsed(base) != 0 {
		t.Error("unstarted stopwatch should read 0")
	}
	w.Resume(base)
	if w.Started() {
		t.Error("resume must not start the stopwatch")
	}

	w.Start(base)
	w.Pause(base.Add(2 * time.Second))
	w.Resume(base.Add(10 * time.Second))
	w.Stop(base.Add(13 * time.Second))
	w.Resume(base.Add(20 * time.Second))

	if got := w.Elapsed(base.Add(time.Hour)); got != 5*time.Second {
		t.Errorf("expected 5s, got %v", got)
	}
	if !w.Frozen() {
		t.Error("expected frozen after stop")
	}
}

func mustChange(t *testing.T, fn func() (Change, error)) Change {
	t.Helper()
	change, err := fn()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return change
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&AgentBusyError{AgentID: "a", SessionID: "s"}, KindAgentBusy},
		{&InvalidStateTransitionError{SessionID: "s", Op: OpHold}, KindInvalidTransition},
		{&ValidationError{Fields: []FieldError{{Field: "outcome"}}}, KindValidation},
		{&SessionNotFoundError{SessionID: "s"}, KindNotFound},
		{fmt.Errorf("wrapped: %w", &SessionNotFoundError{SessionID: "s"}), KindNotFound},
		{errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
