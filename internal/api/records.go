package api

import (
	"net/http"

	"github.com/dennisdiepolder/monti/softphone/internal/auth"
	"github.com/dennisdiepolder/monti/softphone/internal/engine"
	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"github.com/rs/zerolog"
)

// RecordsHandler serves the in-memory ledger and its analytics
type RecordsHandler struct {
	engine *engine.Engine
	logger zerolog.Logger
}

// NewRecordsHandler creates a new RecordsHandler
func NewRecordsHandler(eng *engine.Engine, logger zerolog.Logger) *RecordsHandler {
	return &RecordsHandler{
		engine: eng,
		logger: logger.With().Str("component", "records_handler").Logger(),
	}
}

// Records handles GET /api/records?agentId=&contactId=&date=
func (h *RecordsHandler) Records(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.filter(w, r)
	if !ok {
		return
	}
	records := h.engine.Records(filter)
	if records == nil {
		records = []types.CallRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// Analytics handles GET /api/analytics?agentId=&contactId=&date=
func (h *RecordsHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.filter(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.GetAnalytics(filter))
}

// filter builds a RecordFilter from the query. Agents are pinned to their own records.
func (h *RecordsHandler) filter(w http.ResponseWriter, r *http.Request) (types.RecordFilter, bool) {
	claims, ok := requireUser(w, r)
	if !ok {
		return types.RecordFilter{}, false
	}
	q := r.URL.Query()
	filter := types.RecordFilter{
		AgentID:   q.Get("agentId"),
		ContactID: q.Get("contactId"),
		DateKey:   q.Get("date"),
	}
	if filter.AgentID == "" && claims.Role == auth.RoleAgent {
		filter.AgentID = claims.AgentID
	}
	if !claims.CanSeeAgent(filter.AgentID) {
		writeFailure(w, http.StatusForbidden, codeForbidden, "not allowed to view agent "+filter.AgentID)
		return types.RecordFilter{}, false
	}
	return filter, true
}
