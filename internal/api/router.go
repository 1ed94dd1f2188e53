package api

import (
	"net/http"

	"github.com/dennisdiepolder/monti/softphone/internal/auth"
	"github.com/dennisdiepolder/monti/softphone/internal/engine"
	"github.com/dennisdiepolder/monti/softphone/internal/ledger"
	"github.com/dennisdiepolder/monti/softphone/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Deps wires the REST handlers
type Deps struct {
	Engine     *engine.Engine
	Ledger     *ledger.Ledger
	Stats      *storage.DailyStats
	Store      storage.Store
	StartLimit func(http.Handler) http.Handler // optional
	Logger     zerolog.Logger
}

// Mount registers every /api route on r. Authentication must already be
// applied by the caller.
func Mount(r chi.Router, d Deps) {
	sessions := NewSessionHandler(d.Engine, d.Logger)
	if d.StartLimit != nil {
		sessions.WithStartLimiter(d.StartLimit)
	}
	agents := NewAgentHandler(d.Engine, d.Logger)
	history := NewAgentHistoryHandler(d.Store, d.Logger)
	records := NewRecordsHandler(d.Engine, d.Logger)
	admin := NewAdminHandler(d.Engine, d.Ledger, d.Stats, d.Store, d.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/sessions", sessions.Routes)

		r.Route("/agents", func(r chi.Router) {
			r.Get("/", agents.List)
			r.With(auth.RequireSupervisor).Post("/", agents.RegisterRoster)
			r.Get("/{agentId}", agents.Get)
			r.Delete("/{agentId}", agents.Deactivate)
			r.Get("/{agentId}/session", agents.CurrentSession)
			r.Put("/{agentId}/status", agents.SetStatus)
			r.Get("/{agentId}/history", history.GetHistory)
			r.Get("/{agentId}/calls", history.GetCalls)
		})

		r.Get("/records", records.Records)
		r.Get("/analytics", records.Analytics)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireSupervisor)
			r.Post("/sessions/{sessionId}/end", admin.ForceEnd)
			r.Post("/truncate", admin.Truncate)
		})
	})
}
