package transport

import (
	"sync"
	"time"
)

// Timers is a set of cancellable callbacks keyed by session id
type Timers struct {
	mu      sync.Mutex
	pending map[string][]*time.Timer
	stopped bool
}

// NewTimers creates an empty timer set
func NewTimers() *Timers {
	return &Timers{pending: make(map[string][]*time.Timer)}
}

// Schedule runs fn after d unless the key is cancelled first. A fired
// callback is forgotten before fn runs, so fn may schedule again.
func (t *Timers) Schedule(key string, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	var tm *time.Timer
	tm = time.AfterFunc(d, func() {
		t.forget(key, tm)
		fn()
	})
	t.pending[key] = append(t.pending[key], tm)
}

func (t *Timers) forget(key string, tm *time.Timer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	timers := t.pending[key]
	for i, p := range timers {
		if p == tm {
			timers = append(timers[:i], timers[i+1:]...)
			break
		}
	}
	if len(timers) == 0 {
		delete(t.pending, key)
	} else {
		t.pending[key] = timers
	}
}

// Cancel stops every pending callback for key
func (t *Timers) Cancel(key string) {
	t.mu.Lock()
	timers := t.pending[key]
	delete(t.pending, key)
	t.mu.Unlock()

	for _, tm := range timers {
		tm.Stop()
	}
}

// Pending returns the number of keys with scheduled callbacks
func (t *Timers) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Stop cancels everything and rejects later schedules
func (t *Timers) Stop() {
	t.mu.Lock()
	t.stopped = true
	all := t.pending
	t.pending = make(map[string][]*time.Timer)
	t.mu.Unlock()

	for _, timers := range all {
		for _, tm := range timers {
			tm.Stop()
		}
	}
}
