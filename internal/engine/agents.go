package engine

import (
	"github.com/dennisdiepolder/monti/softphone/internal/types"
)

// RegisterAgent adds or reactivates an agent as available
func (e *Engine) RegisterAgent(agentID, displayName string) types.Agent {
	agent := e.agents.Register(agentID, displayName)
	e.notifyAgent(agent)
	return agent
}

// RegisterRoster registers every entry of a roster
func (e *Engine) RegisterRoster(roster []types.RosterEntry) {
	for _, entry := range roster {
		e.RegisterAgent(entry.AgentID, entry.DisplayName)
	}
}

// DeactivateAgent takes an agent offline. During a call the change is
// queued until the session closes.
func (e *Engine) DeactivateAgent(agentID string) (types.Agent, error) {
	agent, err := e.agents.Deactivate(agentID)
	if err != nil {
		return types.Agent{}, err
	}
	e.notifyAgent(agent)
	return agent, nil
}

// SetAgentStatus applies a manual status change or queues it while the
// agent is in a call
func (e *Engine) SetAgentStatus(agentID string, status types.AgentStatus) (types.Agent, bool, error) {
	agent, queued, err := e.agents.RequestStatus(agentID, status)
	if err != nil {
		e.reject("set_status", err)
		return types.Agent{}, false, err
	}
	e.logger.Info().
		Str("agent_id", agentID).
		Str("status", string(status)).
		Bool("queued", queued).
		Msg("agent status requested")
	e.notifyAgent(agent)
	return agent, queued, nil
}

// Agent returns one agent
func (e *Engine) Agent(agentID string) (types.Agent, bool) {
	return e.agents.Get(agentID)
}

// Agents returns every known agent ordered by id
func (e *Engine) Agents() []types.Agent {
	return e.agents.GetAll()
}

// AgentSummary counts agents per status
func (e *Engine) AgentSummary() map[types.AgentStatus]int {
	return e.agents.Summary()
}

// CountByStatus counts agents per status for the metrics collector
func (e *Engine) CountByStatus() map[string]int {
	counts := make(map[string]int)
	for status, n := range e.agents.Summary() {
		counts[string(status)] = n
	}
	return counts
}

