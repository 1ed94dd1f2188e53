package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dennisdiepolder/monti/softphone/internal/agentstate"
	"github.com/dennisdiepolder/monti/softphone/internal/auth"
	"github.com/dennisdiepolder/monti/softphone/internal/engine"
	"github.com/dennisdiepolder/monti/softphone/internal/session"
	"github.com/rs/zerolog"
)

// errorResponse is the body of every failed API call
type errorResponse struct {
	Error  string               `json:"error"`
	Code   string               `json:"code"`
	Fields []session.FieldError `json:"fields,omitempty"`
}

// Codes for failures that are not engine error kinds
const (
	codeBadRequest   = "bad_request"
	codeForbidden    = "forbidden"
	codeUnauthorized = "unauthorized"
	codeNoAgent      = "no_agent"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeError maps an engine error onto a status code
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	resp := errorResponse{Error: err.Error(), Code: session.Kind(err)}

	var status int
	switch {
	case errors.Is(err, engine.ErrNoAgentAvailable):
		status, resp.Code = http.StatusConflict, codeNoAgent
	case errors.Is(err, agentstate.ErrAgentNotFound):
		status, resp.Code = http.StatusNotFound, session.KindNotFound
	default:
		switch resp.Code {
		case session.KindNotFound:
			status = http.StatusNotFound
		case session.KindAgentBusy, session.KindInvalidTransition:
			status = http.StatusConflict
		case session.KindValidation:
			status = http.StatusUnprocessableEntity
			var verr *session.ValidationError
			if errors.As(err, &verr) {
				resp.Fields = verr.Fields
			}
		default:
			status = http.StatusInternalServerError
			logger.Error().Err(err).Msg("request failed")
			resp.Error = "internal error"
		}
	}

	writeJSON(w, status, resp)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// requireUser returns the caller's claims or writes 401
func requireUser(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok || claims == nil {
		writeFailure(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return nil, false
	}
	return claims, true
}

// authorizeAgent writes 403 unless the caller may act for agentID
func authorizeAgent(w http.ResponseWriter, claims *auth.Claims, agentID string) bool {
	if !claims.CanActForAgent(agentID) {
		writeFailure(w, http.StatusForbidden, codeForbidden, "not allowed to act for agent "+agentID)
		return false
	}
	return true
}
