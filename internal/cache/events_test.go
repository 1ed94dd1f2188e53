package cache

import (
	"fmt"
	"testing"

	"github.com/dennisdiepolder/monti/softphone/internal/types"
)

func TestEventCacheGetAndClear(t *testing.T) {
	c := NewEventCache()
	c.Add(types.SessionEvent{SessionID: "s-1", Action: "answer"})
	c.Add(types.SessionEvent{SessionID: "s-1", Action: "hold"})

	if c.Size() != 2 {
		t.Fatalf("expected 2 events, got %d", c.Size())
	}

	events := c.GetAndClear()
	if len(events) != 2 || events[0].Action != "answer" {
		t.Errorf("unexpected events %+v", events)
	}
	if c.Size() != 0 {
		t.Errorf("expected empty cache after clear, got %d", c.Size())
	}
}

func TestEventCacheDropsOldest(t *testing.T) {
	c := NewEventCache()
	for i := 0; i < maxPending+5; i++ {
		c.Add(types.SessionEvent{SessionID: fmt.Sprintf("s-%d", i)})
	}

	if c.Size() != maxPending {
		t.Errorf("expected %d events, got %d", maxPending, c.Size())
	}
	if c.Dropped() != 5 {
		t.Errorf("expected 5 dropped, got %d", c.Dropped())
	}
	if first := c.GetAndClear()[0].SessionID; first != "s-5" {
		t.Errorf("expected oldest kept event s-5, got %s", first)
	}
}
