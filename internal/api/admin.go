package api

import (
	"net/http"

	"github.com/dennisdiepolder/monti/softphone/internal/engine"
	"github.com/dennisdiepolder/monti/softphone/internal/ledger"
	"github.com/dennisdiepolder/monti/softphone/internal/storage"
	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AdminHandler carries supervisor-only operations. Mount behind auth.RequireSupervisor.
type AdminHandler struct {
	engine *engine.Engine
	ledger *ledger.Ledger
	stats  *storage.DailyStats
	store  storage.Store
	logger zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(eng *engine.Engine, led *ledger.Ledger, stats *storage.DailyStats, store storage.Store, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		engine: eng,
		ledger: led,
		stats:  stats,
		store:  store,
		logger: logger.With().Str("component", "admin").Logger(),
	}
}

// ForceEnd handles POST /api/admin/sessions/{sessionId}/end. A ringing
// call is declined; anything else is hung up and left in wrap-up for the
// agent to complete.
func (h *AdminHandler) ForceEnd(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	snap, err := h.engine.Session(sessionID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if snap.State == types.StateRinging {
		rec, err := h.engine.Decline(r.Context(), sessionID, types.OutcomeNoAnswer)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		h.logger.Info().Str("session_id", sessionID).Str("agent_id", rec.AgentID).Msg("ringing call force-declined")
		writeJSON(w, http.StatusOK, map[string]interface{}{"sessionId": sessionID, "state": types.StateClosed, "record": rec})
		return
	}

	ended, err := h.engine.EndCall(sessionID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info().Str("session_id", sessionID).Str("agent_id", ended.AgentID).Msg("call force-ended")
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessionId": sessionID, "state": ended.State})
}

// Truncate handles POST /api/admin/truncate. Persisted records, the ledger
// and the cached rollups are all cleared.
func (h *AdminHandler) Truncate(w http.ResponseWriter, r *http.Request) {
	if err := h.store.TruncateAll(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("failed to truncate storage")
		writeFailure(w, http.StatusInternalServerError, "internal", "failed to truncate: "+err.Error())
		return
	}
	cleared := h.ledger.Len()
	h.ledger.Reset()
	h.stats.Reset()

	h.logger.Info().Int("records", cleared).Msg("storage and ledger truncated")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "storage truncated",
		"cleared": cleared,
	})
}
