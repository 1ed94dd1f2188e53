package api

import (
	"net/http"

	"github.com/dennisdiepolder/monti/softphone/internal/storage"
	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AgentHistoryHandler serves persisted per-agent history
type AgentHistoryHandler struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewAgentHistoryHandler creates a new AgentHistoryHandler
func NewAgentHistoryHandler(store storage.Store, logger zerolog.Logger) *AgentHistoryHandler {
	return &AgentHistoryHandler{
		store:  store,
		logger: logger.With().Str("component", "agent_history_handler").Logger(),
	}
}

// GetHistory returns the agent's daily rollups
// GET /api/agents/{agentId}/history
func (h *AgentHistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	agentID, ok := h.visibleAgent(w, r)
	if !ok {
		return
	}

	stats, err := h.store.GetAgentDailyStats(r.Context(), agentID)
	if err != nil {
		h.logger.Error().Err(err).Str("agent_id", agentID).Msg("failed to get agent daily stats")
		writeFailure(w, http.StatusInternalServerError, "internal", "failed to retrieve history")
		return
	}
	if stats == nil {
		stats = []types.AgentDailyStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetCalls returns the agent's persisted call records for one day
// GET /api/agents/{agentId}/calls?date=YYYY-MM-DD
func (h *AgentHistoryHandler) GetCalls(w http.ResponseWriter, r *http.Request) {
	agentID, ok := h.visibleAgent(w, r)
	if !ok {
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "date query parameter is required (YYYY-MM-DD)")
		return
	}

	records, err := h.store.GetAgentCallsByDate(r.Context(), agentID, date)
	if err != nil {
		h.logger.Error().Err(err).
			Str("agent_id", agentID).
			Str("date", date).
			Msg("failed to get agent calls")
		writeFailure(w, http.StatusInternalServerError, "internal", "failed to retrieve calls")
		return
	}
	if records == nil {
		records = []types.CallRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *AgentHistoryHandler) visibleAgent(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := requireUser(w, r)
	if !ok {
		return "", false
	}
	agentID := chi.URLParam(r, "agentId")
	if !claims.CanSeeAgent(agentID) {
		writeFailure(w, http.StatusForbidden, codeForbidden, "not allowed to view agent "+agentID)
		return "", false
	}
	return agentID, true
}
