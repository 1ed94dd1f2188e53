package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"github.com/rs/zerolog"
)

const (
	publishTimeout = 5 * time.Second
	queueSize      = 512
)

// Delivery classes per topic family
const (
	qosSessionEvent = 0
	qosRecord       = 1
	qosAgentStatus  = 1
)

type outbound struct {
	topic    string
	payload  any
	qos      byte
	retained bool
}

// EventPublisher maps engine output onto MQTT topics:
//
//	<prefix>/sessions/<agentId>/<sessionId>  session lifecycle events (QoS 0)
//	<prefix>/records/<agentId>               call records (QoS 1)
//	<prefix>/agents/<agentId>/status         agent status, retained (QoS 1)
//
// Session events and agent updates go through a bounded queue drained by
// one goroutine, so callers never wait on the broker and order is kept.
type EventPublisher struct {
	pub    Publisher
	prefix string
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan outbound
	done   chan struct{}
}

// NewEventPublisher creates an EventPublisher on top of pub and starts its worker
func NewEventPublisher(pub Publisher, prefix string, logger zerolog.Logger) *EventPublisher {
	p := &EventPublisher{
		pub:    pub,
		prefix: prefix,
		logger: logger.With().Str("component", "publisher").Logger(),
		queue:  make(chan outbound, queueSize),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Deliver publishes a call record synchronously. It satisfies the ledger
// sink contract.
func (p *EventPublisher) Deliver(ctx context.Context, rec types.CallRecord) error {
	topic := fmt.Sprintf("%s/records/%s", p.prefix, rec.AgentID)
	return p.publishJSON(ctx, outbound{
		topic:   topic,
		payload: types.CallRecordMessage{Type: types.MessageCallRecord, Record: rec},
		qos:     qosRecord,
	})
}

// SessionEvent queues a lifecycle event
func (p *EventPublisher) SessionEvent(ev types.SessionEvent) {
	p.enqueue(outbound{
		topic:   fmt.Sprintf("%s/sessions/%s/%s", p.prefix, ev.AgentID, ev.SessionID),
		payload: ev,
		qos:     qosSessionEvent,
	})
}

// AgentStatus queues an agent status update
func (p *EventPublisher) AgentStatus(agent types.Agent) {
	p.enqueue(outbound{
		topic:    fmt.Sprintf("%s/agents/%s/status", p.prefix, agent.AgentID),
		payload:  agent,
		qos:      qosAgentStatus,
		retained: true,
	})
}

// Close drains the queue and stops the worker. The underlying publisher
// is left open.
func (p *EventPublisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
}

func (p *EventPublisher) enqueue(msg outbound) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- msg:
	default:
		p.logger.Warn().Str("topic", msg.topic).Msg("publish queue full, dropping message")
	}
}

func (p *EventPublisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := p.publishJSON(ctx, msg); err != nil {
			p.logger.Warn().Err(err).Str("topic", msg.topic).Msg("failed to publish")
		}
		cancel()
	}
}

func (p *EventPublisher) publishJSON(ctx context.Context, msg outbound) error {
	payload, err := json.Marshal(msg.payload)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", msg.topic, err)
	}
	return p.pub.Publish(ctx, Message{
		Topic:    msg.topic,
		Payload:  payload,
		QoS:      msg.qos,
		Retained: msg.retained,
	})
}
