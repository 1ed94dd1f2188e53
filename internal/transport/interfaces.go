package transport

// EventHandler receives signals from the telephony side (simulated timers,
// a real adapter posting to the event endpoint, etc.)
type EventHandler interface {
	OnRinging(sessionID string)
	OnAnswered(sessionID string)
	OnRemoteHangup(sessionID string)
}

// Transport places and tears down calls on behalf of the engine
type Transport interface {
	// SetHandler registers the receiver of transport signals
	SetHandler(h EventHandler)

	// Dial starts an outbound call for an already reserved session
	Dial(sessionID, phone string) error

	// Hangup stops all pending signals for the session. Safe to call twice.
	Hangup(sessionID string)
}
