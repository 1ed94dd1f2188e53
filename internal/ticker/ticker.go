package ticker

import (
	"context"
	"time"

	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"github.com/rs/zerolog"
)

// SessionSource lists live sessions
type SessionSource interface {
	Sessions() []types.CallSession
}

// TickSink receives clock updates
type TickSink interface {
	BroadcastTick(tick types.SessionTick)
}

// Ticker periodically pushes the elapsed clock of every answered live
// session so consoles can render call duration
type Ticker struct {
	sessions SessionSource
	sink     TickSink
	interval time.Duration
	logger   zerolog.Logger
}

// NewTicker creates a new Ticker
func NewTicker(sessions SessionSource, sink TickSink, interval time.Duration, logger zerolog.Logger) *Ticker {
	return &Ticker{
		sessions: sessions,
		sink:     sink,
		interval: interval,
		logger:   logger.With().Str("component", "ticker").Logger(),
	}
}

// Start broadcasts until ctx is cancelled
func (t *Ticker) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info().Dur("interval", t.interval).Msg("ticker started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("ticker stopped")
			return

		case now := <-ticker.C:
			if n := t.tick(now); n > 0 {
				t.logger.Debug().Int("sessions", n).Msg("broadcasted session ticks")
			}
		}
	}
}

// tick sends one update per connected or held session and returns the count
func (t *Ticker) tick(now time.Time) int {
	sent := 0
	for _, s := range t.sessions.Sessions() {
		if !s.State.HasMedia() {
			continue
		}
		t.sink.BroadcastTick(types.SessionTick{
			Type:           types.MessageSessionTick,
			SessionID:      s.SessionID,
			AgentID:        s.AgentID,
			State:          s.State,
			ElapsedSeconds: s.ElapsedSeconds,
			ServerTime:     now.Unix(),
		})
		sent++
	}
	return sent
}
