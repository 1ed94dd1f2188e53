package event

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dennisdiepolder/monti/softphone/internal/metrics"
	"github.com/dennisdiepolder/monti/softphone/internal/transport"
	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"github.com/rs/zerolog"
)

// Receiver accepts telephony signals posted by an external transport adapter
type Receiver struct {
	handler        transport.EventHandler
	logger         zerolog.Logger
	eventsReceived int64
	lastReceived   time.Time
	mu             sync.RWMutex
}

// NewReceiver creates a new event receiver
func NewReceiver(handler transport.EventHandler, logger zerolog.Logger) *Receiver {
	return &Receiver{
		handler: handler,
		logger:  logger.With().Str("component", "transport_events").Logger(),
	}
}

// HandleEvent decodes a transport event and forwards it to the handler
func (r *Receiver) HandleEvent(w http.ResponseWriter, req *http.Request) {
	m := metrics.Get()

	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var event types.TransportEvent
	if err := json.NewDecoder(req.Body).Decode(&event); err != nil {
		r.logger.Error().Err(err).Msg("failed to decode event")
		m.RecordTransportError()
		http.Error(w, "invalid event", http.StatusBadRequest)
		return
	}
	if event.SessionID == "" {
		m.RecordTransportError()
		http.Error(w, "sessionId is required", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case types.TransportRinging:
		r.handler.OnRinging(event.SessionID)
	case types.TransportAnswered:
		r.handler.OnAnswered(event.SessionID)
	case types.TransportHangup:
		r.handler.OnRemoteHangup(event.SessionID)
	default:
		r.logger.Warn().Str("type", event.Type).Str("session_id", event.SessionID).Msg("unknown transport event")
		m.RecordTransportError()
		http.Error(w, "unknown event type", http.StatusBadRequest)
		return
	}

	atomic.AddInt64(&r.eventsReceived, 1)
	r.mu.Lock()
	r.lastReceived = time.Now()
	r.mu.Unlock()

	count := atomic.LoadInt64(&r.eventsReceived)
	if count%1000 == 0 {
		r.logger.Info().Int64("total_received", count).Msg("transport events received")
	}

	w.WriteHeader(http.StatusAccepted)
}

// GetStats returns receiver statistics
func (r *Receiver) GetStats(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	lastReceived := r.lastReceived
	r.mu.RUnlock()

	stats := map[string]interface{}{
		"events_received": atomic.LoadInt64(&r.eventsReceived),
		"last_received":   lastReceived,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
