package transport

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Simulated stands in for real signaling. After Dial it reports ringing
// after ringDelay and, when answerDelay is positive, a remote answer
// answerDelay later.
type Simulated struct {
	timers      *Timers
	ringDelay   time.Duration
	answerDelay time.Duration
	handler     EventHandler
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewSimulated creates a simulated transport
func NewSimulated(ringDelay, answerDelay time.Duration, logger zerolog.Logger) *Simulated {
	return &Simulated{
		timers:      NewTimers(),
		ringDelay:   ringDelay,
		answerDelay: answerDelay,
		logger:      logger.With().Str("component", "transport").Logger(),
	}
}

// SetHandler registers the receiver of transport signals
func (s *Simulated) SetHandler(h EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Dial schedules the ringing and answer signals for sessionID
func (s *Simulated) Dial(sessionID, phone string) error {
	s.logger.Debug().
		Str("session_id", sessionID).
		Str("phone", phone).
		Dur("ring_delay", s.ringDelay).
		Msg("dialing")

	s.timers.Schedule(sessionID, s.ringDelay, func() {
		if h := s.getHandler(); h != nil {
			h.OnRinging(sessionID)
		}
	})
	if s.answerDelay > 0 {
		s.timers.Schedule(sessionID, s.ringDelay+s.answerDelay, func() {
			if h := s.getHandler(); h != nil {
				h.OnAnswered(sessionID)
			}
		})
	}
	return nil
}

// Hangup cancels pending signals for sessionID
func (s *Simulated) Hangup(sessionID string) {
	s.timers.Cancel(sessionID)
}

// Close cancels all pending signals
func (s *Simulated) Close() {
	s.timers.Stop()
}

func (s *Simulated) getHandler() EventHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler
}
