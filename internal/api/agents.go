package api

import (
	"net/http"

	"github.com/dennisdiepolder/monti/softphone/internal/auth"
	"github.com/dennisdiepolder/monti/softphone/internal/engine"
	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AgentHandler exposes agent registration and status control
type AgentHandler struct {
	engine *engine.Engine
	logger zerolog.Logger
}

// NewAgentHandler creates a new AgentHandler
func NewAgentHandler(eng *engine.Engine, logger zerolog.Logger) *AgentHandler {
	return &AgentHandler{
		engine: eng,
		logger: logger.With().Str("component", "agent_handler").Logger(),
	}
}

type statusRequest struct {
	Status types.AgentStatus `json:"status"`
}

type statusResponse struct {
	Agent  types.Agent `json:"agent"`
	Queued bool        `json:"queued"`
}

// List handles GET /api/agents
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireUser(w, r)
	if !ok {
		return
	}
	all := h.engine.Agents()
	visible := make([]types.Agent, 0, len(all))
	for _, a := range all {
		if claims.CanSeeAgent(a.AgentID) {
			visible = append(visible, a)
		}
	}
	writeJSON(w, http.StatusOK, visible)
}

// Get handles GET /api/agents/{agentId}
func (h *AgentHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireUser(w, r)
	if !ok {
		return
	}
	agentID := chi.URLParam(r, "agentId")
	if !claims.CanSeeAgent(agentID) {
		writeFailure(w, http.StatusForbidden, codeForbidden, "not allowed to view agent "+agentID)
		return
	}
	agent, found := h.engine.Agent(agentID)
	if !found {
		writeFailure(w, http.StatusNotFound, "not_found", "agent "+agentID+" not found")
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

// CurrentSession handles GET /api/agents/{agentId}/session
func (h *AgentHandler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireUser(w, r)
	if !ok {
		return
	}
	agentID := chi.URLParam(r, "agentId")
	if !claims.CanSeeAgent(agentID) {
		writeFailure(w, http.StatusForbidden, codeForbidden, "not allowed to view agent "+agentID)
		return
	}
	snap, found := h.engine.SessionForAgent(agentID)
	if !found {
		writeFailure(w, http.StatusNotFound, "not_found", "agent "+agentID+" has no live session")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// RegisterRoster handles POST /api/agents. Mount behind auth.RequireSupervisor.
func (h *AgentHandler) RegisterRoster(w http.ResponseWriter, r *http.Request) {
	var roster []types.RosterEntry
	if err := decode(r, &roster); err != nil {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "invalid JSON")
		return
	}

	registered := 0
	for _, entry := range roster {
		if entry.AgentID == "" {
			continue
		}
		h.engine.RegisterAgent(entry.AgentID, entry.DisplayName)
		registered++
	}

	h.logger.Info().Int("registered", registered).Msg("roster received")
	writeJSON(w, http.StatusOK, map[string]int{"registered": registered})
}

// SetStatus handles PUT /api/agents/{agentId}/status
func (h *AgentHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireUser(w, r)
	if !ok {
		return
	}
	agentID := chi.URLParam(r, "agentId")
	if !authorizeAgent(w, claims, agentID) {
		return
	}
	var req statusRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "invalid JSON")
		return
	}

	agent, queued, err := h.engine.SetAgentStatus(agentID, req.Status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	status := http.StatusOK
	if queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, statusResponse{Agent: agent, Queued: queued})
}

// Deactivate handles DELETE /api/agents/{agentId}
func (h *AgentHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok || !claims.IsSupervisor() {
		writeFailure(w, http.StatusForbidden, codeForbidden, "supervisor role required")
		return
	}
	agent, err := h.engine.DeactivateAgent(chi.URLParam(r, "agentId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}
