package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/softphone/internal/agentstate"
	"github.com/dennisdiepolder/monti/softphone/internal/directory"
	"github.com/dennisdiepolder/monti/softphone/internal/ledger"
	"github.com/dennisdiepolder/monti/softphone/internal/metrics"
	"github.com/dennisdiepolder/monti/softphone/internal/registry"
	"github.com/dennisdiepolder/monti/softphone/internal/session"
	"github.com/dennisdiepolder/monti/softphone/internal/transport"
	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"github.com/dennisdiepolder/monti/softphone/internal/wrapup"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNoAgentAvailable is returned by RouteIncoming when nobody can take the call
var ErrNoAgentAvailable = errors.New("no agent available")

const (
	resolveTimeout = 5 * time.Second

	// Delay before an engine-internal signal that hit a transition in
	// flight is delivered again
	signalRetryDelay = 10 * time.Millisecond
)

// Config holds the engine's tunables
type Config struct {
	// RingTimeout closes a ringing session as no-answer. Zero disables it.
	RingTimeout      time.Duration
	HoldCountsAsTalk bool
	Clock            session.Clock
}

// EventListener receives every accepted lifecycle event after the session
// lock is released. Implementations must not block.
type EventListener interface {
	SessionEvent(ev types.SessionEvent)
}

// AgentListener receives agent updates. Implementations must not block.
type AgentListener interface {
	AgentStatus(agent types.Agent)
}

// EventListenerFunc adapts a function to EventListener
type EventListenerFunc func(ev types.SessionEvent)

func (f EventListenerFunc) SessionEvent(ev types.SessionEvent) { f(ev) }

// Engine exposes the call-session operations and coordinates the session
// registry, agent tracker, wrap-up enforcer, ledger and transport
type Engine struct {
	cfg       Config
	clock     session.Clock
	sessions  *registry.Registry
	agents    *agentstate.Tracker
	wrapup    *wrapup.Enforcer
	ledger    *ledger.Ledger
	contacts  directory.Directory
	transport transport.Transport
	timers    *transport.Timers
	routing   agentstate.RoutingStrategy
	logger    zerolog.Logger

	listenerMu     sync.RWMutex
	listeners      []EventListener
	agentListeners []AgentListener

	wg sync.WaitGroup // background dials
}

// New creates an engine and registers it as the transport's event handler
func New(cfg Config, led *ledger.Ledger, contacts directory.Directory, tr transport.Transport, logger zerolog.Logger) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger = logger.With().Str("component", "engine").Logger()

	reg := registry.New()
	agents := agentstate.NewTracker(clock)
	e := &Engine{
		cfg:       cfg,
		clock:     clock,
		sessions:  reg,
		agents:    agents,
		wrapup:    wrapup.NewEnforcer(reg, led, contacts, agents, clock, logger),
		ledger:    led,
		contacts:  contacts,
		transport: tr,
		timers:    transport.NewTimers(),
		routing:   agentstate.LongestIdleFirst{},
		logger:    logger,
	}
	tr.SetHandler(e)
	return e
}

// Subscribe registers a lifecycle event listener
func (e *Engine) Subscribe(l EventListener) {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	e.listeners = append(e.listeners, l)
}

// SubscribeAgents registers an agent update listener
func (e *Engine) SubscribeAgents(l AgentListener) {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	e.agentListeners = append(e.agentListeners, l)
}

// StartCall reserves the agent's slot and places an outbound call. The
// contact is resolved and dialed in the background; the returned session
// is in Dialing.
func (e *Engine) StartCall(agentID, contactID string) (types.CallSession, error) {
	verr := &session.ValidationError{}
	if agentID == "" {
		verr.Add("agentId", "required")
	}
	if contactID == "" {
		verr.Add("contactId", "required")
	}
	e.checkActive(agentID, verr)
	if err := verr.OrNil(); err != nil {
		e.reject("start", err)
		return types.CallSession{}, err
	}

	s := e.newSession(session.Params{
		AgentID:   agentID,
		ContactID: contactID,
		Direction: types.DirectionOutbound,
		Initial:   types.StateDialing,
	})
	if err := e.sessions.Reserve(s); err != nil {
		e.reject("start", err)
		return types.CallSession{}, err
	}
	e.notifyAgent(e.agents.BeginCall(agentID, s.ID()))

	snap := s.Snapshot()
	e.emit(session.Change{Action: "start", To: types.StateDialing, Session: snap})
	e.logger.Info().
		Str("session_id", snap.SessionID).
		Str("agent_id", agentID).
		Str("contact_id", contactID).
		Msg("outbound call started")

	e.wg.Add(1)
	go e.dial(s, contactID)
	return snap, nil
}

// dial resolves the contact and hands the session to the transport. Runs
// outside every lock.
func (e *Engine) dial(s *session.Session, contactID string) {
	defer e.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	contact, err := e.contacts.ResolveContact(ctx, contactID)
	cancel()
	if err != nil {
		e.logger.Warn().Err(err).
			Str("session_id", s.ID()).
			Str("contact_id", contactID).
			Msg("failed to resolve contact")
		e.fail(s, types.OutcomeDisconnected)
		return
	}
	s.AttachContact(contact)
	if s.State() != types.StateDialing {
		return
	}

	if err := e.transport.Dial(s.ID(), contact.Phone); err != nil {
		metrics.Get().RecordTransportError()
		e.logger.Error().Err(err).Str("session_id", s.ID()).Msg("dial failed")
		e.fail(s, types.OutcomeDisconnected)
	}
}

// IncomingCall creates a ringing inbound session for agentID. When
// contactID is empty the caller is looked up by phone number.
func (e *Engine) IncomingCall(ctx context.Context, agentID, phone, contactID string) (types.CallSession, error) {
	verr := &session.ValidationError{}
	if agentID == "" {
		verr.Add("agentId", "required")
	}
	normalized, err := directory.NormalizePhone(phone)
	if err != nil {
		verr.Add("phone", err.Error())
	}
	e.checkActive(agentID, verr)
	if err := verr.OrNil(); err != nil {
		e.reject("incoming", err)
		return types.CallSession{}, err
	}

	s := e.newSession(session.Params{
		AgentID:     agentID,
		ContactID:   contactID,
		Direction:   types.DirectionInbound,
		PhoneNumber: normalized,
		Initial:     types.StateRinging,
	})
	if err := e.sessions.Reserve(s); err != nil {
		e.reject("incoming", err)
		return types.CallSession{}, err
	}
	e.notifyAgent(e.agents.BeginCall(agentID, s.ID()))

	// Caller lookup happens after the slot is reserved and outside all locks
	var contact types.Contact
	var lookupErr error
	if contactID != "" {
		contact, lookupErr = e.contacts.ResolveContact(ctx, contactID)
	} else {
		contact, lookupErr = e.contacts.FindByPhone(ctx, normalized)
	}
	switch {
	case lookupErr == nil:
		s.AttachContact(contact)
	case !errors.Is(lookupErr, directory.ErrContactNotFound):
		e.logger.Warn().Err(lookupErr).Str("session_id", s.ID()).Msg("caller lookup failed")
	}

	e.scheduleRingTimeout(s.ID())

	snap := s.Snapshot()
	e.emit(session.Change{Action: "incoming", To: types.StateRinging, Session: snap})
	e.logger.Info().
		Str("session_id", snap.SessionID).
		Str("agent_id", agentID).
		Str("contact_id", snap.ContactID).
		Msg("inbound call ringing")
	return snap, nil
}

// RouteIncoming offers an inbound call to the longest-idle available agent
func (e *Engine) RouteIncoming(ctx context.Context, phone, contactID string) (types.CallSession, error) {
	tried := make(map[string]bool)
	for {
		candidates := make([]types.Agent, 0)
		for _, a := range e.agents.GetAvailable() {
			if !tried[a.AgentID] {
				candidates = append(candidates, a)
			}
		}
		agent, ok := e.routing.SelectAgent(candidates)
		if !ok {
			e.reject("route", ErrNoAgentAvailable)
			return types.CallSession{}, ErrNoAgentAvailable
		}
		tried[agent.AgentID] = true

		snap, err := e.IncomingCall(ctx, agent.AgentID, phone, contactID)
		if errors.Is(err, session.ErrAgentBusy) {
			// Lost a race with another call for this agent
			continue
		}
		return snap, err
	}
}

// Answer connects a ringing session
func (e *Engine) Answer(sessionID string) (types.CallSession, error) {
	snap, err := e.apply(sessionID, session.OpAnswer, (*session.Session).Answer)
	if err == nil {
		e.timers.Cancel(sessionID)
	}
	return snap, err
}

// Hold puts a connected session on hold
func (e *Engine) Hold(sessionID string) (types.CallSession, error) {
	return e.apply(sessionID, session.OpHold, (*session.Session).Hold)
}

// Resume takes a session off hold
func (e *Engine) Resume(sessionID string) (types.CallSession, error) {
	return e.apply(sessionID, session.OpResume, (*session.Session).Resume)
}

// Mute toggles the mute flag
func (e *Engine) Mute(sessionID string) (types.CallSession, error) {
	return e.apply(sessionID, session.OpMute, (*session.Session).ToggleMute)
}

// ToggleRecord toggles recording
func (e *Engine) ToggleRecord(sessionID string) (types.CallSession, error) {
	return e.apply(sessionID, session.OpRecord, (*session.Session).ToggleRecord)
}

// EndCall hangs up and moves the session into WrapUp
func (e *Engine) EndCall(sessionID string) (types.CallSession, error) {
	snap, err := e.apply(sessionID, session.OpEnd, (*session.Session).End)
	if err == nil {
		e.timers.Cancel(sessionID)
		e.transport.Hangup(sessionID)
		e.logger.Info().
			Str("session_id", sessionID).
			Str("agent_id", snap.AgentID).
			Float64("elapsed", snap.ElapsedSeconds).
			Msg("call ended, wrap-up required")
	}
	return snap, err
}

// Decline rejects a ringing session. The record is written immediately
// with disposition no-contact.
func (e *Engine) Decline(ctx context.Context, sessionID string, outcome types.Outcome) (types.CallRecord, error) {
	res, err := e.wrapup.CloseUnanswered(ctx, sessionID, outcome)
	if err != nil {
		e.reject(session.OpDecline, err)
		return types.CallRecord{}, err
	}
	e.timers.Cancel(sessionID)
	e.transport.Hangup(sessionID)
	e.closed(res)
	return res.Record, nil
}

// OpenWrapUp returns the draft for a session in WrapUp
func (e *Engine) OpenWrapUp(sessionID string) (types.WrapUpDraft, error) {
	draft, err := e.wrapup.OpenWrapUp(sessionID)
	if err != nil {
		e.reject(session.OpOpenWrapUp, err)
	}
	return draft, err
}

// CancelWrapUp discards an open form; the session stays in WrapUp
func (e *Engine) CancelWrapUp(sessionID string) error {
	err := e.wrapup.CancelWrapUp(sessionID)
	if err != nil {
		e.reject(session.OpCancelWrapUp, err)
	}
	return err
}

// CompleteWrapUp records the call and closes the session
func (e *Engine) CompleteWrapUp(ctx context.Context, sessionID string, draft types.WrapUpDraft) (types.CallRecord, error) {
	res, err := e.wrapup.CompleteWrapUp(ctx, sessionID, draft)
	if err != nil {
		e.reject(session.OpComplete, err)
		return types.CallRecord{}, err
	}
	e.closed(res)
	return res.Record, nil
}

// GetAnalytics aggregates the ledger
func (e *Engine) GetAnalytics(filter types.RecordFilter) types.Analytics {
	return e.ledger.Analytics(filter)
}

// Records returns ledger entries matching filter
func (e *Engine) Records(filter types.RecordFilter) []types.CallRecord {
	return e.ledger.Records(filter)
}

// Session returns a snapshot of a live session
func (e *Engine) Session(sessionID string) (types.CallSession, error) {
	s, err := e.sessions.Get(sessionID)
	if err != nil {
		return types.CallSession{}, err
	}
	return s.Snapshot(), nil
}

// SessionForAgent returns the agent's live session, if any
func (e *Engine) SessionForAgent(agentID string) (types.CallSession, bool) {
	s, ok := e.sessions.ForAgent(agentID)
	if !ok {
		return types.CallSession{}, false
	}
	return s.Snapshot(), true
}

// Sessions returns snapshots of all live sessions ordered by agent
func (e *Engine) Sessions() []types.CallSession {
	live := e.sessions.List()
	out := make([]types.CallSession, 0, len(live))
	for _, s := range live {
		out = append(out, s.Snapshot())
	}
	return out
}

// CountByState counts live sessions per state
func (e *Engine) CountByState() map[string]int {
	counts := make(map[string]int)
	for _, s := range e.sessions.List() {
		counts[string(s.State())]++
	}
	return counts
}

// Close cancels pending timers and waits for background dials
func (e *Engine) Close() {
	e.timers.Stop()
	e.wg.Wait()
}

func (e *Engine) newSession(p session.Params) *session.Session {
	p.SessionID = uuid.NewString()
	return session.New(p, session.Options{
		Clock:            e.clock,
		HoldCountsAsTalk: e.cfg.HoldCountsAsTalk,
	})
}

// checkActive rejects agents that were deactivated by a supervisor
func (e *Engine) checkActive(agentID string, verr *session.ValidationError) {
	if agentID == "" {
		return
	}
	if a, ok := e.agents.Get(agentID); ok && !a.Active {
		verr.Add("agentId", "agent is deactivated")
	}
}

func (e *Engine) apply(sessionID, op string, fn func(*session.Session) (session.Change, error)) (types.CallSession, error) {
	s, err := e.sessions.Get(sessionID)
	if err != nil {
		e.reject(op, err)
		return types.CallSession{}, err
	}
	change, err := fn(s)
	if err != nil {
		e.reject(op, err)
		return types.CallSession{}, err
	}
	e.emit(change)
	return change.Session, nil
}

// fail ends a session the transport gave up on. A session the operator
// already ended is left alone.
func (e *Engine) fail(s *session.Session, outcome types.Outcome) {
	change, err := s.Fail(outcome)
	if err != nil {
		e.logger.Debug().Err(err).Str("session_id", s.ID()).Msg("session already past failure point")
		return
	}
	e.timers.Cancel(s.ID())
	e.transport.Hangup(s.ID())
	e.emit(change)
}

func (e *Engine) scheduleRingTimeout(sessionID string) {
	if e.cfg.RingTimeout <= 0 {
		return
	}
	e.timers.Schedule(sessionID, e.cfg.RingTimeout, func() {
		e.ringTimeout(sessionID)
	})
}

func (e *Engine) ringTimeout(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	res, err := e.wrapup.CloseUnanswered(ctx, sessionID, types.OutcomeNoAnswer)
	if errors.Is(err, session.ErrInFlight) {
		e.logger.Debug().Str("session_id", sessionID).Msg("transition in flight, ring timeout re-armed")
		e.timers.Schedule(sessionID, signalRetryDelay, func() {
			e.ringTimeout(sessionID)
		})
		return
	}
	if err != nil {
		// Answered or ended in the meantime
		e.logger.Debug().Err(err).Str("session_id", sessionID).Msg("ring timeout ignored")
		return
	}
	e.timers.Cancel(sessionID)
	metrics.Get().RecordRingTimeout()
	e.transport.Hangup(sessionID)
	e.logger.Info().Str("session_id", sessionID).Dur("timeout", e.cfg.RingTimeout).Msg("ring timeout")
	e.closed(res)
}

// closed publishes the final transition and the released agent
func (e *Engine) closed(res wrapup.Result) {
	e.emit(res.Change)
	metrics.Get().RecordSessionClosed(string(res.Record.Outcome), string(res.Record.Disposition), float64(res.Record.Duration))
	e.notifyAgent(res.Agent)
}

func (e *Engine) emit(change session.Change) {
	ev := types.SessionEvent{
		Type:      types.MessageSessionEvent,
		Action:    change.Action,
		SessionID: change.Session.SessionID,
		AgentID:   change.Session.AgentID,
		From:      change.From,
		To:        change.To,
		Session:   change.Session,
		Timestamp: e.clock(),
	}
	metrics.Get().RecordTransition(change.Action)

	e.logger.Debug().
		Str("session_id", ev.SessionID).
		Str("action", ev.Action).
		Str("from", string(ev.From)).
		Str("to", string(ev.To)).
		Msg("session transition")

	e.listenerMu.RLock()
	defer e.listenerMu.RUnlock()
	for _, l := range e.listeners {
		l.SessionEvent(ev)
	}
}

func (e *Engine) notifyAgent(agent types.Agent) {
	e.listenerMu.RLock()
	defer e.listenerMu.RUnlock()
	for _, l := range e.agentListeners {
		l.AgentStatus(agent)
	}
}

func (e *Engine) reject(op string, err error) {
	kind := session.Kind(err)
	if errors.Is(err, ErrNoAgentAvailable) {
		kind = "no_agent"
	}
	metrics.Get().RecordRejection(op, kind)
	e.logger.Debug().Err(err).Str("op", op).Str("kind", kind).Msg("operation rejected")
}
