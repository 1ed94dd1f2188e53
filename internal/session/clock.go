package session

import "time"

// Clock provides the current time. Defaults to time.Now; override in tests.
type Clock func() time.Time

// Stopwatch accumulates talk time for one session. It is not safe for
// concurrent use; the owning Session serializes access.
type Stopwatch struct {
	started     bool
	running     bool
	frozen      bool
	runStart    time.Time
	accumulated time.Duration
}

// Start resets the accumulator to zero and begins counting
func (w *Stopwatch) Start(now time.Time) {
	w.started = true
	w.running = true
	w.frozen = false
	w.runStart = now
	w.accumulated = 0
}

// Pause stops counting without freezing; Resume continues from the same total
func (w *Stopwatch) Pause(now time.Time) {
	if !w.running {
		return
	}
	w.accumulated += nonNegative(now.Sub(w.runStart))
	w.running = false
}

// Resume continues counting after a Pause
func (w *Stopwatch) Resume(now time.Time) {
	if !w.started || w.running || w.frozen {
		return
	}
	w.runStart = now
	w.running = true
}

// Stop freezes the total. Later calls to Resume are ignored.
func (w *Stopwatch) Stop(now time.Time) {
	w.Pause(now)
	w.frozen = true
}

// Started reports whether Start was ever called
func (w *Stopwatch) Started() bool { return w.started }

// Frozen reports whether Stop was called
func (w *Stopwatch) Frozen() bool { return w.frozen }

// Elapsed returns the accumulated time as of now
func (w *Stopwatch) Elapsed(now time.Time) time.Duration {
	if w.running {
		return w.accumulated + nonNegative(now.Sub(w.runStart))
	}
	return w.accumulated
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
