package agentstate

import "github.com/dennisdiepolder/monti/softphone/internal/types"

// RoutingStrategy selects the agent that should take an unassigned inbound call
type RoutingStrategy interface {
	SelectAgent(available []types.Agent) (types.Agent, bool)
}

// LongestIdleFirst selects the agent who has been available the longest
type LongestIdleFirst struct{}

// SelectAgent picks the available agent with the oldest StatusSince.
// Ties go to the lower agent id so routing is deterministic.
func (LongestIdleFirst) SelectAgent(available []types.Agent) (types.Agent, bool) {
	if len(available) == 0 {
		return types.Agent{}, false
	}

	oldest := available[0]
	for _, a := range available[1:] {
		if a.StatusSince.Before(oldest.StatusSince) ||
			(a.StatusSince.Equal(oldest.StatusSince) && a.AgentID < oldest.AgentID) {
			oldest = a
		}
	}
	return oldest, true
}
