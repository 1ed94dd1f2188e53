package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dennisdiepolder/monti/softphone/internal/metrics"
	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"github.com/rs/zerolog"
)

// outgoing is one message queued for broadcast. An empty agentID means
// every client receives it; otherwise only clients allowed to see that
// agent do. A snapshot is filtered per client.
type outgoing struct {
	agentID  string
	data     []byte
	snapshot *types.Snapshot
}

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Messages to fan out
	broadcast chan outgoing

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	// Mutex to protect clients map
	mu sync.RWMutex

	logger zerolog.Logger
}

// NewHub creates a new Hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan outgoing, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "hub").Logger(),
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.Get().RecordWebSocketConnect()
			h.logger.Info().
				Str("client_id", client.id).
				Int("total_clients", total).
				Msg("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.Get().RecordWebSocketDisconnect()
				h.logger.Info().
					Str("client_id", client.id).
					Int("total_clients", len(h.clients)).
					Msg("client disconnected")
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Register adds a client unless the hub has stopped
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client unless the hub has stopped
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// SessionEvent pushes a lifecycle event to the clients watching its agent
func (h *Hub) SessionEvent(ev types.SessionEvent) {
	h.publish(ev.AgentID, ev)
}

// Deliver pushes a new call record. It satisfies the ledger sink contract.
func (h *Hub) Deliver(_ context.Context, rec types.CallRecord) error {
	h.publish(rec.AgentID, types.CallRecordMessage{Type: types.MessageCallRecord, Record: rec})
	return nil
}

// BroadcastTick pushes a session clock update
func (h *Hub) BroadcastTick(tick types.SessionTick) {
	h.publish(tick.AgentID, tick)
}

// BroadcastSnapshot pushes a dashboard snapshot, filtered per client
func (h *Hub) BroadcastSnapshot(snap *types.Snapshot) {
	h.enqueue(outgoing{snapshot: snap})
}

// Broadcast sends a raw message to all connected clients
func (h *Hub) Broadcast(message []byte) {
	h.enqueue(outgoing{data: message})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) publish(agentID string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal message")
		return
	}
	h.enqueue(outgoing{agentID: agentID, data: data})
}

// enqueue never blocks the caller; a full queue drops the message
func (h *Hub) enqueue(msg outgoing) {
	select {
	case h.broadcast <- msg:
	default:
		metrics.Get().RecordWebSocketError()
		h.logger.Warn().Str("agent_id", msg.agentID).Msg("broadcast queue full, dropping message")
	}
}

func (h *Hub) deliver(msg outgoing) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		data := msg.data
		switch {
		case msg.snapshot != nil:
			filtered := client.FilterSnapshot(msg.snapshot)
			var err error
			if data, err = json.Marshal(filtered); err != nil {
				h.logger.Error().Err(err).Msg("failed to marshal filtered snapshot")
				continue
			}
		case msg.agentID != "" && !client.CanSee(msg.agentID):
			continue
		}

		select {
		case client.send <- data:
			metrics.Get().RecordWebSocketMessage()
		default:
			// Client's send buffer is full, close and remove it
			close(client.send)
			delete(h.clients, client)
			metrics.Get().RecordWebSocketDisconnect()
			h.logger.Warn().
				Str("client_id", client.id).
				Msg("client send buffer full, closing connection")
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
		metrics.Get().RecordWebSocketDisconnect()
	}
}
