package cache

import (
	"sync"

	"github.com/dennisdiepolder/monti/softphone/internal/types"
)

// maxPending bounds the buffer when no snapshot drains it
const maxPending = 2000

// EventCache buffers session events between dashboard snapshots
type EventCache struct {
	events  []types.SessionEvent
	dropped int
	mu      sync.RWMutex
}

// NewEventCache creates a new event cache
func NewEventCache() *EventCache {
	return &EventCache{
		events: make([]types.SessionEvent, 0, 256),
	}
}

// Add appends an event. Once full, the oldest event is dropped.
func (c *EventCache) Add(event types.SessionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) >= maxPending {
		c.events = c.events[1:]
		c.dropped++
	}
	c.events = append(c.events, event)
}

// GetAndClear returns all events and clears the cache
func (c *EventCache) GetAndClear() []types.SessionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	events := c.events
	c.events = make([]types.SessionEvent, 0, 256)
	return events
}

// Size returns the current number of cached events
func (c *EventCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

// Dropped returns how many events were discarded because nobody drained the cache
func (c *EventCache) Dropped() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dropped
}

// SessionEvent adds ev; it lets the cache subscribe to the engine directly
func (c *EventCache) SessionEvent(ev types.SessionEvent) {
	c.Add(ev)
}
