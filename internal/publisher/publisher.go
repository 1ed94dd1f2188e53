package publisher

import "context"

// Message is one publication. Retained messages are replayed by the broker
// to subscribers that connect later.
type Message struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// Publisher sends messages to a broker
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// StatusTopic is where the engine announces online/offline
func StatusTopic(prefix string) string {
	return prefix + "/engine/status"
}
