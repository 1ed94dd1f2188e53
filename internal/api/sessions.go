package api

import (
	"net/http"

	"github.com/dennisdiepolder/monti/softphone/internal/engine"
	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// SessionHandler exposes the call lifecycle over REST
type SessionHandler struct {
	engine     *engine.Engine
	startLimit func(http.Handler) http.Handler
	logger     zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(eng *engine.Engine, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		engine: eng,
		logger: logger.With().Str("component", "session_handler").Logger(),
	}
}

// WithStartLimiter throttles call placement with mw
func (h *SessionHandler) WithStartLimiter(mw func(http.Handler) http.Handler) *SessionHandler {
	h.startLimit = mw
	return h
}

// Routes mounts the session endpoints on r
func (h *SessionHandler) Routes(r chi.Router) {
	start := http.Handler(http.HandlerFunc(h.StartCall))
	if h.startLimit != nil {
		start = h.startLimit(start)
	}

	r.Get("/", h.List)
	r.Method(http.MethodPost, "/", start)
	r.Post("/incoming", h.Incoming)
	r.Post("/route", h.Route)

	r.Route("/{sessionId}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/answer", h.action(h.engine.Answer))
		r.Post("/hold", h.action(h.engine.Hold))
		r.Post("/resume", h.action(h.engine.Resume))
		r.Post("/mute", h.action(h.engine.Mute))
		r.Post("/record", h.action(h.engine.ToggleRecord))
		r.Post("/end", h.action(h.engine.EndCall))
		r.Post("/decline", h.Decline)
		r.Get("/wrapup", h.OpenWrapUp)
		r.Delete("/wrapup", h.CancelWrapUp)
		r.Post("/wrapup", h.CompleteWrapUp)
	})
}

type startCallRequest struct {
	AgentID   string `json:"agentId"`
	ContactID string `json:"contactId"`
}

type incomingCallRequest struct {
	AgentID   string `json:"agentId"`
	Phone     string `json:"phone"`
	ContactID string `json:"contactId,omitempty"`
}

type declineRequest struct {
	Outcome types.Outcome `json:"outcome"`
}

// StartCall handles POST /api/sessions
func (h *SessionHandler) StartCall(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req startCallRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "invalid JSON")
		return
	}
	if req.AgentID == "" {
		req.AgentID = claims.AgentID
	}
	if req.AgentID != "" && !authorizeAgent(w, claims, req.AgentID) {
		return
	}

	snap, err := h.engine.StartCall(req.AgentID, req.ContactID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// Incoming handles POST /api/sessions/incoming
func (h *SessionHandler) Incoming(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req incomingCallRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "invalid JSON")
		return
	}
	if req.AgentID == "" {
		req.AgentID = claims.AgentID
	}
	if req.AgentID != "" && !authorizeAgent(w, claims, req.AgentID) {
		return
	}

	snap, err := h.engine.IncomingCall(r.Context(), req.AgentID, req.Phone, req.ContactID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// Route handles POST /api/sessions/route. Only supervisors distribute calls.
func (h *SessionHandler) Route(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireUser(w, r)
	if !ok {
		return
	}
	if !claims.IsSupervisor() {
		writeFailure(w, http.StatusForbidden, codeForbidden, "supervisor role required")
		return
	}
	var req incomingCallRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "invalid JSON")
		return
	}

	snap, err := h.engine.RouteIncoming(r.Context(), req.Phone, req.ContactID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// List handles GET /api/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireUser(w, r)
	if !ok {
		return
	}
	all := h.engine.Sessions()
	visible := make([]types.CallSession, 0, len(all))
	for _, s := range all {
		if claims.CanSeeAgent(s.AgentID) {
			visible = append(visible, s)
		}
	}
	writeJSON(w, http.StatusOK, visible)
}

// Get handles GET /api/sessions/{sessionId}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireUser(w, r)
	if !ok {
		return
	}
	snap, err := h.engine.Session(chi.URLParam(r, "sessionId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !claims.CanSeeAgent(snap.AgentID) {
		writeFailure(w, http.StatusForbidden, codeForbidden, "not allowed to view session")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// action wraps a single-step lifecycle operation
func (h *SessionHandler) action(op func(sessionID string) (types.CallSession, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := h.authorizeSession(w, r)
		if !ok {
			return
		}
		snap, err := op(sessionID)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// Decline handles POST /api/sessions/{sessionId}/decline
func (h *SessionHandler) Decline(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.authorizeSession(w, r)
	if !ok {
		return
	}
	var req declineRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "invalid JSON")
		return
	}
	if req.Outcome == "" {
		req.Outcome = types.OutcomeNoAnswer
	}

	rec, err := h.engine.Decline(r.Context(), sessionID, req.Outcome)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// OpenWrapUp handles GET /api/sessions/{sessionId}/wrapup
func (h *SessionHandler) OpenWrapUp(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.authorizeSession(w, r)
	if !ok {
		return
	}
	draft, err := h.engine.OpenWrapUp(sessionID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// CancelWrapUp handles DELETE /api/sessions/{sessionId}/wrapup
func (h *SessionHandler) CancelWrapUp(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.authorizeSession(w, r)
	if !ok {
		return
	}
	if err := h.engine.CancelWrapUp(sessionID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompleteWrapUp handles POST /api/sessions/{sessionId}/wrapup
func (h *SessionHandler) CompleteWrapUp(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.authorizeSession(w, r)
	if !ok {
		return
	}
	var draft types.WrapUpDraft
	if err := decode(r, &draft); err != nil {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "invalid JSON")
		return
	}
	draft.SessionID = sessionID

	rec, err := h.engine.CompleteWrapUp(r.Context(), sessionID, draft)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// authorizeSession resolves the path session and checks the caller owns it
func (h *SessionHandler) authorizeSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := requireUser(w, r)
	if !ok {
		return "", false
	}
	sessionID := chi.URLParam(r, "sessionId")
	snap, err := h.engine.Session(sessionID)
	if err != nil {
		writeError(w, h.logger, err)
		return "", false
	}
	if !authorizeAgent(w, claims, snap.AgentID) {
		return "", false
	}
	return sessionID, true
}
