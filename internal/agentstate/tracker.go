package agentstate

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/softphone/internal/session"
	"github.com/dennisdiepolder/monti/softphone/internal/types"
)

// ErrAgentNotFound is returned for agents that were never registered
var ErrAgentNotFound = errors.New("agent not found")

// entry is the tracker's private state for one agent
type entry struct {
	agent   types.Agent
	preCall types.AgentStatus // status captured when the current call began
	inCall  bool
}

// Tracker owns agent availability. It is the only writer of agent status
// and call counters.
type Tracker struct {
	agents map[string]*entry // agentID -> state
	mu     sync.RWMutex
	clock  session.Clock
}

// NewTracker creates an empty tracker. A nil clock defaults to time.Now.
func NewTracker(clock session.Clock) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{
		agents: make(map[string]*entry),
		clock:  clock,
	}
}

// Register adds an agent as available, or reactivates a known one.
// Counters of a known agent are kept.
func (t *Tracker) Register(agentID, displayName string) types.Agent {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.ensureLocked(agentID)
	if displayName != "" {
		e.agent.DisplayName = displayName
	}
	if !e.agent.Active {
		e.agent.Active = true
		if !e.inCall {
			t.setStatusLocked(e, types.StatusAvailable)
		}
	}
	return e.agent
}

// RegisterRoster registers every entry of a roster
func (t *Tracker) RegisterRoster(roster []types.RosterEntry) {
	for _, r := range roster {
		t.Register(r.AgentID, r.DisplayName)
	}
}

// Deactivate takes an agent offline. An agent in a call goes offline when
// the call closes.
func (t *Tracker) Deactivate(agentID string) (types.Agent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.agents[agentID]
	if !ok {
		return types.Agent{}, fmt.Errorf("deactivate %s: %w", agentID, ErrAgentNotFound)
	}
	e.agent.Active = false
	if e.inCall {
		e.agent.PendingStatus = types.StatusOffline
	} else {
		t.setStatusLocked(e, types.StatusOffline)
	}
	return e.agent, nil
}

// BeginCall marks the agent busy with sessionID and remembers the status
// to restore afterwards. Unknown agents are registered on the fly.
func (t *Tracker) BeginCall(agentID, sessionID string) types.Agent {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.ensureLocked(agentID)
	if !e.inCall {
		e.preCall = e.agent.Status
		if e.preCall == types.StatusBusy || e.preCall == "" {
			e.preCall = types.StatusAvailable
		}
	}
	e.inCall = true
	e.agent.Active = true
	e.agent.CurrentSessionID = sessionID
	e.agent.PendingStatus = ""
	t.setStatusLocked(e, types.StatusBusy)
	return e.agent
}

// RequestStatus applies a manual status change, or queues it while the
// agent is in a call. Busy cannot be chosen manually.
func (t *Tracker) RequestStatus(agentID string, status types.AgentStatus) (agent types.Agent, queued bool, err error) {
	verr := &session.ValidationError{}
	switch {
	case !status.Valid():
		verr.Add("status", fmt.Sprintf("unknown status %q", status))
	case status == types.StatusBusy:
		verr.Add("status", "busy is set by calls and cannot be requested")
	}
	if err := verr.OrNil(); err != nil {
		return types.Agent{}, false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.ensureLocked(agentID)
	e.agent.Active = status != types.StatusOffline
	if e.inCall {
		e.agent.PendingStatus = status
		return e.agent, true, nil
	}
	t.setStatusLocked(e, status)
	return e.agent, false, nil
}

// Release ends the agent's call, updates the counters and restores the
// queued status, or the pre-call status when nothing was queued.
func (t *Tracker) Release(agentID string, outcome types.Outcome, duration float64) types.Agent {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.ensureLocked(agentID)
	a := &e.agent
	a.TotalCalls++
	if outcome == types.OutcomeAnswered {
		a.SuccessfulCalls++
	}
	a.AvgCallDuration += (duration - a.AvgCallDuration) / float64(a.TotalCalls)

	next := e.preCall
	if a.PendingStatus != "" {
		next = a.PendingStatus
	}
	if next == "" {
		next = types.StatusAvailable
	}
	e.inCall = false
	e.preCall = ""
	a.CurrentSessionID = ""
	a.PendingStatus = ""
	t.setStatusLocked(e, next)
	return *a
}

// Get returns one agent
func (t *Tracker) Get(agentID string) (types.Agent, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.agents[agentID]
	if !ok {
		return types.Agent{}, false
	}
	return e.agent, true
}

// GetAll returns all agents ordered by id
func (t *Tracker) GetAll() []types.Agent {
	t.mu.RLock()
	agents := make([]types.Agent, 0, len(t.agents))
	for _, e := range t.agents {
		agents = append(agents, e.agent)
	}
	t.mu.RUnlock()

	sort.Slice(agents, func(i, j int) bool { return agents[i].AgentID < agents[j].AgentID })
	return agents
}

// GetAvailable returns active agents that can take a call
func (t *Tracker) GetAvailable() []types.Agent {
	t.mu.RLock()
	defer t.mu.RUnlock()

	agents := make([]types.Agent, 0)
	for _, e := range t.agents {
		if e.agent.Active && !e.inCall && e.agent.Status == types.StatusAvailable {
			agents = append(agents, e.agent)
		}
	}
	return agents
}

// Summary counts agents per status
func (t *Tracker) Summary() map[types.AgentStatus]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	summary := make(map[types.AgentStatus]int, len(types.AllAgentStatuses))
	for _, s := range types.AllAgentStatuses {
		summary[s] = 0
	}
	for _, e := range t.agents {
		summary[e.agent.Status]++
	}
	return summary
}

// Count returns the number of tracked agents
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.agents)
}

func (t *Tracker) ensureLocked(agentID string) *entry {
	e, ok := t.agents[agentID]
	if ok {
		return e
	}
	e = &entry{agent: types.Agent{
		AgentID:     agentID,
		DisplayName: agentID,
		Status:      types.StatusAvailable,
		StatusSince: t.clock(),
		Active:      true,
	}}
	t.agents[agentID] = e
	return e
}

func (t *Tracker) setStatusLocked(e *entry, status types.AgentStatus) {
	if e.agent.Status == status {
		return
	}
	e.agent.Status = status
	e.agent.StatusSince = t.clock()
}
