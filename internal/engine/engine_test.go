package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/softphone/internal/directory"
	"github.com/dennisdiepolder/monti/softphone/internal/ledger"
	"github.com/dennisdiepolder/monti/softphone/internal/session"
	"github.com/dennisdiepolder/monti/softphone/internal/transport"
	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"github.com/rs/zerolog"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

// fakeTransport records dials and hangups without scheduling anything
type fakeTransport struct {
	mu      sync.Mutex
	handler transport.EventHandler
	dialed  map[string]string
	hungUp  map[string]int
	dialErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{dialed: make(map[string]string), hungUp: make(map[string]int)}
}

func (f *fakeTransport) SetHandler(h transport.EventHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *fakeTransport) Dial(sessionID, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dialErr != nil {
		return f.dialErr
	}
	f.dialed[sessionID] = phone
	return nil
}

func (f *fakeTransport) Hangup(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hungUp[sessionID]++
}

// gatedClock parks the first Now call after arm until release is closed,
// holding whatever transition made the call in flight
type gatedClock struct {
	now     time.Time
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGatedClock() *gatedClock {
	return &gatedClock{
		now:     time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (c *gatedClock) Now() time.Time {
	if c.armed.CompareAndSwap(true, false) {
		close(c.entered)
		<-c.release
	}
	return c.now
}

func (c *gatedClock) arm() { c.armed.Store(true) }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type fixture struct {
	engine    *Engine
	clock     *fakeClock
	transport *fakeTransport
	ledger    *ledger.Ledger
	contacts  *directory.Memory
	events    *eventLog
}

type eventLog struct {
	mu      sync.Mutex
	actions []string
}

func (l *eventLog) SessionEvent(ev types.SessionEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.actions = append(l.actions, ev.Action)
}

func (l *eventLog) Actions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.actions...)
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	contacts, err := directory.NewMemory([]types.Contact{
		{ContactID: "c-1", Name: "Ada Lovelace", Phone: "+4915112345678"},
		{ContactID: "c-2", Name: "Grace Hopper", Phone: "+14155550100"},
	})
	if err != nil {
		t.Fatal(err)
	}
	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	if cfg.Clock == nil {
		cfg.Clock = clock.Now
	}
	tr := newFakeTransport()
	led := ledger.New(zerolog.Nop())
	e := New(cfg, led, contacts, tr, zerolog.Nop())
	events := &eventLog{}
	e.Subscribe(events)
	t.Cleanup(e.Close)

	return &fixture{engine: e, clock: clock, transport: tr, ledger: led, contacts: contacts, events: events}
}

// startConnected places an outbound call to c-1 and drives it to Connected
func (f *fixture) startConnected(t *testing.T, agentID string) types.CallSession {
	t.Helper()
	snap, err := f.engine.StartCall(agentID, "c-1")
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	f.engine.wg.Wait()
	f.engine.OnRinging(snap.SessionID)
	snap, err = f.engine.Answer(snap.SessionID)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	return snap
}

func TestOutboundCallScenario(t *testing.T) {
	f := newFixture(t, Config{HoldCountsAsTalk: true, RingTimeout: time.Hour})
	e := f.engine
	e.RegisterAgent("agent-1", "Agent One")

	snap, err := e.StartCall("agent-1", "c-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != types.StateDialing {
		t.Fatalf("expected dialing, got %s", snap.State)
	}
	id := snap.SessionID

	e.wg.Wait()
	if phone := f.transport.dialed[id]; phone != "+4915112345678" {
		t.Errorf("expected dial to contact phone, got %q", phone)
	}

	e.OnRinging(id)
	if _, err := e.Answer(id); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(12 * time.Second)
	if _, err := e.Hold(id); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(5 * time.Second)
	if _, err := e.Resume(id); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(8 * time.Second)

	ended, err := e.EndCall(id)
	if err != nil {
		t.Fatal(err)
	}
	if ended.State != types.StateWrapUp || ended.ElapsedSeconds != 25 {
		t.Errorf("expected wrap_up at 25s, got %s at %v", ended.State, ended.ElapsedSeconds)
	}
	if f.transport.hungUp[id] == 0 {
		t.Error("expected transport hangup")
	}

	// Time spent in wrap-up does not count
	f.clock.Advance(30 * time.Second)

	draft, err := e.OpenWrapUp(id)
	if err != nil {
		t.Fatal(err)
	}
	if draft.Outcome != types.OutcomeAnswered {
		t.Errorf("expected draft outcome answered, got %s", draft.Outcome)
	}
	draft.Disposition = types.DispositionSale
	draft.Notes = "Upgraded plan"

	rec, err := e.CompleteWrapUp(context.Background(), id, draft)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Duration != 25 {
		t.Errorf("expected duration 25, got %d", rec.Duration)
	}
	if rec.ContactID != "c-1" || rec.HoldCount != 1 || rec.HoldTime != 5 {
		t.Errorf("unexpected record %+v", rec)
	}

	agent, _ := e.Agent("agent-1")
	if agent.Status != types.StatusAvailable || agent.TotalCalls != 1 || agent.SuccessfulCalls != 1 {
		t.Errorf("unexpected agent after close: %+v", agent)
	}
	if n := len(e.Sessions()); n != 0 {
		t.Errorf("expected empty registry, got %d sessions", n)
	}
	if _, err := e.Session(id); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("expected SessionNotFound after close, got %v", err)
	}
	if _, err := e.CompleteWrapUp(context.Background(), id, draft); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("second completion should be rejected as not found, got %v", err)
	}

	contact, _ := f.contacts.ResolveContact(context.Background(), "c-1")
	if contact.LastCalled == nil {
		t.Error("expected contact last-called stamp")
	}
	if got := e.GetAnalytics(types.RecordFilter{}); got.TotalCalls != 1 || got.AvgDuration != 25 {
		t.Errorf("unexpected analytics %+v", got)
	}

	want := []string{"start", "ring", "answer", "hold", "resume", "end", "complete_wrapup"}
	got := f.events.Actions()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestStartCallRejectsBusyAgent(t *testing.T) {
	f := newFixture(t, Config{})
	first, err := f.engine.StartCall("agent-1", "c-1")
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.engine.StartCall("agent-1", "c-2")
	var busy *session.AgentBusyError
	if !errors.As(err, &busy) {
		t.Fatalf("expected AgentBusyError, got %v", err)
	}
	if busy.SessionID != first.SessionID {
		t.Errorf("expected busy with %s, got %s", first.SessionID, busy.SessionID)
	}

	if _, err := f.engine.IncomingCall(context.Background(), "agent-1", "+14155550100", ""); !errors.Is(err, session.ErrAgentBusy) {
		t.Errorf("incoming call should also be rejected, got %v", err)
	}
}

func TestStartCallValidation(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.engine.StartCall("", "")
	var verr *session.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if got := verr.FieldNames(); len(got) != 2 || got[0] != "agentId" || got[1] != "contactId" {
		t.Errorf("unexpected fields %v", got)
	}

	f.engine.RegisterAgent("agent-1", "Agent One")
	if _, err := f.engine.DeactivateAgent("agent-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.StartCall("agent-1", "c-1"); !errors.Is(err, session.ErrValidation) {
		t.Errorf("deactivated agent should be rejected, got %v", err)
	}
}

func TestCompleteWrapUpRequiresOutcomeAndDisposition(t *testing.T) {
	f := newFixture(t, Config{HoldCountsAsTalk: true})
	snap := f.startConnected(t, "agent-1")
	if _, err := f.engine.EndCall(snap.SessionID); err != nil {
		t.Fatal(err)
	}

	_, err := f.engine.CompleteWrapUp(context.Background(), snap.SessionID, types.WrapUpDraft{})
	var verr *session.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if got := verr.FieldNames(); len(got) != 2 || got[0] != "outcome" || got[1] != "disposition" {
		t.Errorf("expected outcome and disposition, got %v", got)
	}

	got, err := f.engine.Session(snap.SessionID)
	if err != nil || got.State != types.StateWrapUp {
		t.Errorf("session should stay in wrap_up, got %s (%v)", got.State, err)
	}
	if f.ledger.Len() != 0 {
		t.Error("no record may be written on validation failure")
	}
	agent, _ := f.engine.Agent("agent-1")
	if agent.Status != types.StatusBusy {
		t.Errorf("agent should stay busy, got %s", agent.Status)
	}
}

func TestEndCallTwiceIsInvalid(t *testing.T) {
	f := newFixture(t, Config{})
	snap := f.startConnected(t, "agent-1")
	if _, err := f.engine.EndCall(snap.SessionID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.EndCall(snap.SessionID); !errors.Is(err, session.ErrInvalidTransition) {
		t.Errorf("expected InvalidStateTransition, got %v", err)
	}
	if _, err := f.engine.Hold("missing"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("expected SessionNotFound, got %v", err)
	}
}

func TestRingTimeoutClosesAsNoAnswer(t *testing.T) {
	f := newFixture(t, Config{RingTimeout: 20 * time.Millisecond, Clock: time.Now})
	f.engine.RegisterAgent("agent-1", "Agent One")

	snap, err := f.engine.IncomingCall(context.Background(), "agent-1", "+1 415 555 0100", "")
	if err != nil {
		t.Fatal(err)
	}
	if snap.State != types.StateRinging || snap.ContactID != "c-2" {
		t.Fatalf("expected ringing call matched to c-2, got %s/%s", snap.State, snap.ContactID)
	}

	deadline := time.Now().Add(2 * time.Second)
	for (len(f.engine.Sessions()) > 0 || f.engine.timers.Pending() > 0) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := len(f.engine.Sessions()); n != 0 {
		t.Fatalf("expected ring timeout to close the session, %d live", n)
	}
	if n := f.engine.timers.Pending(); n != 0 {
		t.Errorf("expected no pending timers after the timeout fired, got %d", n)
	}

	recs := f.engine.Records(types.RecordFilter{AgentID: "agent-1"})
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Outcome != types.OutcomeNoAnswer || recs[0].Disposition != types.DispositionNoContact || recs[0].Duration != 0 {
		t.Errorf("unexpected record %+v", recs[0])
	}
	agent, _ := f.engine.Agent("agent-1")
	if agent.Status != types.StatusAvailable {
		t.Errorf("expected agent available, got %s", agent.Status)
	}
}

func TestAnswerCancelsRingTimeout(t *testing.T) {
	f := newFixture(t, Config{RingTimeout: 20 * time.Millisecond})
	snap, err := f.engine.IncomingCall(context.Background(), "agent-1", "+4915112345678", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.Answer(snap.SessionID); err != nil {
		t.Fatal(err)
	}

	time.Sleep(60 * time.Millisecond)
	got, err := f.engine.Session(snap.SessionID)
	if err != nil || got.State != types.StateConnected {
		t.Errorf("answered call must survive the ring timeout, got %s (%v)", got.State, err)
	}
}

func TestDecline(t *testing.T) {
	f := newFixture(t, Config{})
	snap, err := f.engine.IncomingCall(context.Background(), "agent-1", "+4915112345678", "c-1")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.engine.Decline(context.Background(), snap.SessionID, types.OutcomeAnswered); !errors.Is(err, session.ErrValidation) {
		t.Errorf("declining as answered should fail validation, got %v", err)
	}

	rec, err := f.engine.Decline(context.Background(), snap.SessionID, types.OutcomeBusy)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Outcome != types.OutcomeBusy || rec.Disposition != types.DispositionNoContact {
		t.Errorf("unexpected record %+v", rec)
	}
	if _, err := f.engine.Decline(context.Background(), snap.SessionID, ""); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("expected SessionNotFound on second decline, got %v", err)
	}
	if f.transport.hungUp[snap.SessionID] == 0 {
		t.Error("expected transport hangup")
	}
}

func TestDialFailures(t *testing.T) {
	tests := []struct {
		name      string
		contactID string
		dialErr   error
	}{
		{"unknown contact", "c-missing", nil},
		{"transport error", "c-1", errors.New("trunk down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.transport.dialErr = tt.dialErr

			snap, err := f.engine.StartCall("agent-1", tt.contactID)
			if err != nil {
				t.Fatal(err)
			}
			f.engine.wg.Wait()

			got, err := f.engine.Session(snap.SessionID)
			if err != nil {
				t.Fatal(err)
			}
			if got.State != types.StateWrapUp || got.InferredOutcome != types.OutcomeDisconnected {
				t.Errorf("expected wrap_up/disconnected, got %s/%s", got.State, got.InferredOutcome)
			}

			draft, err := f.engine.OpenWrapUp(snap.SessionID)
			if err != nil {
				t.Fatal(err)
			}
			if draft.Disposition != types.DispositionNoContact {
				t.Errorf("expected no-contact draft, got %s", draft.Disposition)
			}
			rec, err := f.engine.CompleteWrapUp(context.Background(), snap.SessionID, draft)
			if err != nil {
				t.Fatal(err)
			}
			if rec.Duration != 0 {
				t.Errorf("unanswered call must have zero duration, got %d", rec.Duration)
			}
		})
	}
}

func TestRemoteHangup(t *testing.T) {
	f := newFixture(t, Config{})
	snap := f.startConnected(t, "agent-1")

	f.engine.OnRemoteHangup(snap.SessionID)
	got, _ := f.engine.Session(snap.SessionID)
	if got.State != types.StateWrapUp || got.InferredOutcome != types.OutcomeAnswered {
		t.Errorf("expected wrap_up/answered, got %s/%s", got.State, got.InferredOutcome)
	}

	// Late signals are ignored
	f.engine.OnRemoteHangup(snap.SessionID)
	f.engine.OnAnswered(snap.SessionID)
	if got, _ := f.engine.Session(snap.SessionID); got.State != types.StateWrapUp {
		t.Errorf("late signals must not change state, got %s", got.State)
	}
}

func TestQueuedStatusRestoredAfterCall(t *testing.T) {
	f := newFixture(t, Config{})
	f.engine.RegisterAgent("agent-1", "Agent One")
	snap := f.startConnected(t, "agent-1")

	agent, queued, err := f.engine.SetAgentStatus("agent-1", types.StatusBreak)
	if err != nil || !queued {
		t.Fatalf("expected queued break, got queued=%v err=%v", queued, err)
	}
	if agent.Status != types.StatusBusy {
		t.Errorf("agent should stay busy during the call, got %s", agent.Status)
	}
	if _, _, err := f.engine.SetAgentStatus("agent-1", types.StatusBusy); !errors.Is(err, session.ErrValidation) {
		t.Errorf("manual busy must be rejected, got %v", err)
	}

	if _, err := f.engine.EndCall(snap.SessionID); err != nil {
		t.Fatal(err)
	}
	draft := types.WrapUpDraft{Outcome: types.OutcomeAnswered, Disposition: types.DispositionCallback}
	if _, err := f.engine.CompleteWrapUp(context.Background(), snap.SessionID, draft); err != nil {
		t.Fatal(err)
	}

	agent, _ = f.engine.Agent("agent-1")
	if agent.Status != types.StatusBreak {
		t.Errorf("expected queued break after close, got %s", agent.Status)
	}
}

func TestRouteIncomingPicksLongestIdle(t *testing.T) {
	f := newFixture(t, Config{})
	f.engine.RegisterAgent("agent-b", "B")
	f.clock.Advance(time.Minute)
	f.engine.RegisterAgent("agent-a", "A")

	first, err := f.engine.RouteIncoming(context.Background(), "+4915112345678", "")
	if err != nil {
		t.Fatal(err)
	}
	if first.AgentID != "agent-b" {
		t.Errorf("expected longest idle agent-b, got %s", first.AgentID)
	}

	second, err := f.engine.RouteIncoming(context.Background(), "+14155550100", "")
	if err != nil {
		t.Fatal(err)
	}
	if second.AgentID != "agent-a" {
		t.Errorf("expected agent-a, got %s", second.AgentID)
	}

	if _, err := f.engine.RouteIncoming(context.Background(), "+14155550100", ""); !errors.Is(err, ErrNoAgentAvailable) {
		t.Errorf("expected ErrNoAgentAvailable, got %v", err)
	}
}

func TestCountsForMetrics(t *testing.T) {
	f := newFixture(t, Config{})
	f.engine.RegisterAgent("agent-2", "Two")
	f.startConnected(t, "agent-1")

	if got := f.engine.CountByState()["connected"]; got != 1 {
		t.Errorf("expected 1 connected session, got %d", got)
	}
	counts := f.engine.CountByStatus()
	if counts["busy"] != 1 || counts["available"] != 1 || counts["offline"] != 0 {
		t.Errorf("unexpected status counts %v", counts)
	}
}

func TestInboundCallScenario(t *testing.T) {
	f := newFixture(t, Config{HoldCountsAsTalk: true, RingTimeout: time.Hour})
	e := f.engine
	if err := f.contacts.Put(types.Contact{ContactID: "C1", Name: "Caller One", Phone: "+15550123"}); err != nil {
		t.Fatal(err)
	}
	e.RegisterAgent("A1", "Agent A1")

	snap, err := e.IncomingCall(context.Background(), "A1", "+15550123", "C1")
	if err != nil {
		t.Fatal(err)
	}
	if snap.State != types.StateRinging || snap.Direction != types.DirectionInbound || snap.ContactID != "C1" {
		t.Fatalf("unexpected session %+v", snap)
	}
	id := snap.SessionID

	if agent, _ := e.Agent("A1"); agent.Status != types.StatusBusy {
		t.Errorf("expected A1 busy while ringing, got %s", agent.Status)
	}
	if _, err := e.StartCall("A1", "c-1"); !errors.Is(err, session.ErrAgentBusy) {
		t.Errorf("expected AgentBusy for a second call, got %v", err)
	}

	if _, err := e.Answer(id); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(12 * time.Second)
	if _, err := e.Hold(id); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(5 * time.Second)
	if _, err := e.Resume(id); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(8 * time.Second)
	if _, err := e.EndCall(id); err != nil {
		t.Fatal(err)
	}

	rec, err := e.CompleteWrapUp(context.Background(), id, types.WrapUpDraft{
		Outcome:     types.OutcomeAnswered,
		Disposition: types.DispositionSale,
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Duration != 25 || rec.Direction != types.DirectionInbound || rec.ContactID != "C1" || rec.PhoneNumber != "+15550123" {
		t.Errorf("unexpected record %+v", rec)
	}

	agent, _ := e.Agent("A1")
	if agent.Status != types.StatusAvailable {
		t.Errorf("expected A1 available, got %s", agent.Status)
	}
	if n := len(e.Sessions()); n != 0 {
		t.Errorf("expected empty registry, got %d sessions", n)
	}
	if n := e.timers.Pending(); n != 0 {
		t.Errorf("expected ring timer cancelled, %d pending", n)
	}
}

func TestRingTimeoutRetriedWhileTransitionInFlight(t *testing.T) {
	clock := newGatedClock()
	f := newFixture(t, Config{RingTimeout: time.Hour, Clock: clock.Now})
	e := f.engine
	e.RegisterAgent("agent-1", "Agent One")

	snap, err := e.IncomingCall(context.Background(), "agent-1", "+4915112345678", "")
	if err != nil {
		t.Fatal(err)
	}
	id := snap.SessionID

	clock.arm()
	holdErr := make(chan error, 1)
	go func() {
		_, err := e.Hold(id)
		holdErr <- err
	}()
	<-clock.entered

	// The timer fires while the hold attempt owns the session
	e.ringTimeout(id)
	close(clock.release)

	if err := <-holdErr; !errors.Is(err, session.ErrInvalidTransition) || errors.Is(err, session.ErrInFlight) {
		t.Errorf("expected hold on a ringing call to be invalid, got %v", err)
	}

	waitFor(t, "ring timeout to close the session", func() bool {
		return len(e.Sessions()) == 0 && e.timers.Pending() == 0
	})

	recs := e.Records(types.RecordFilter{AgentID: "agent-1"})
	if len(recs) != 1 || recs[0].Outcome != types.OutcomeNoAnswer {
		t.Fatalf("expected one no-answer record, got %+v", recs)
	}
	if agent, _ := e.Agent("agent-1"); agent.Status != types.StatusAvailable {
		t.Errorf("expected agent available, got %s", agent.Status)
	}
}

func TestRemoteHangupRetriedWhileTransitionInFlight(t *testing.T) {
	clock := newGatedClock()
	f := newFixture(t, Config{RingTimeout: time.Hour, Clock: clock.Now})
	e := f.engine
	snap := f.startConnected(t, "agent-1")
	id := snap.SessionID

	clock.arm()
	muteErr := make(chan error, 1)
	go func() {
		_, err := e.Mute(id)
		muteErr <- err
	}()
	<-clock.entered

	e.OnRemoteHangup(id)
	close(clock.release)

	if err := <-muteErr; err != nil {
		t.Fatalf("mute: %v", err)
	}

	waitFor(t, "remote hangup to reach wrap-up", func() bool {
		got, err := e.Session(id)
		return err == nil && got.State == types.StateWrapUp
	})

	got, _ := e.Session(id)
	if !got.IsMuted {
		t.Error("mute should have been applied before the hangup")
	}
	f.transport.mu.Lock()
	hungUp := f.transport.hungUp[id]
	f.transport.mu.Unlock()
	if hungUp == 0 {
		t.Error("expected transport hangup")
	}

	actions := f.events.Actions()
	if last := actions[len(actions)-1]; last != "end" {
		t.Errorf("expected end as the last event, got %v", actions)
	}
	waitFor(t, "signal retries to drain", func() bool { return e.timers.Pending() == 0 })
}
