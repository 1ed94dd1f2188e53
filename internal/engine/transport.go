package engine

import (
	"errors"

	"github.com/dennisdiepolder/monti/softphone/internal/metrics"
	"github.com/dennisdiepolder/monti/softphone/internal/session"
	"github.com/dennisdiepolder/monti/softphone/internal/types"
)

// OnRinging moves an outbound session to Ringing and arms the ring timeout
func (e *Engine) OnRinging(sessionID string) {
	metrics.Get().RecordTransportEvent(types.TransportRinging)
	e.ringing(sessionID)
}

// OnAnswered connects the session when the remote side picks up
func (e *Engine) OnAnswered(sessionID string) {
	metrics.Get().RecordTransportEvent(types.TransportAnswered)
	e.answered(sessionID)
}

// OnRemoteHangup moves the session into WrapUp when the other side hangs up
func (e *Engine) OnRemoteHangup(sessionID string) {
	metrics.Get().RecordTransportEvent(types.TransportHangup)
	e.remoteHangup(sessionID)
}

func (e *Engine) ringing(sessionID string) {
	s, err := e.sessions.Get(sessionID)
	if err != nil {
		e.logger.Debug().Err(err).Str("session_id", sessionID).Msg("ringing for unknown session")
		return
	}
	change, err := s.Ring()
	if err != nil {
		if !e.retrySignal(sessionID, err, e.ringing) {
			e.reject(session.OpRing, err)
		}
		return
	}
	e.scheduleRingTimeout(sessionID)
	e.emit(change)
}

func (e *Engine) answered(sessionID string) {
	if _, err := e.Answer(sessionID); err != nil && !e.retrySignal(sessionID, err, e.answered) {
		e.logger.Debug().Err(err).Str("session_id", sessionID).Msg("remote answer ignored")
	}
}

func (e *Engine) remoteHangup(sessionID string) {
	snap, err := e.apply(sessionID, session.OpEnd, (*session.Session).End)
	if err != nil {
		if !e.retrySignal(sessionID, err, e.remoteHangup) {
			e.logger.Debug().Err(err).Str("session_id", sessionID).Msg("remote hangup ignored")
		}
		return
	}
	e.timers.Cancel(sessionID)
	e.transport.Hangup(sessionID)
	e.logger.Info().
		Str("session_id", sessionID).
		Str("agent_id", snap.AgentID).
		Msg("remote hangup, wrap-up required")
}

// retrySignal schedules signal again when err is an in-flight rejection.
// Retries are keyed apart from the session's ring timer, so answering or
// ending the call does not cancel them.
func (e *Engine) retrySignal(sessionID string, err error, signal func(string)) bool {
	if !errors.Is(err, session.ErrInFlight) {
		return false
	}
	e.logger.Debug().Str("session_id", sessionID).Msg("transition in flight, signal retried")
	e.timers.Schedule(signalKey(sessionID), signalRetryDelay, func() {
		signal(sessionID)
	})
	return true
}

func signalKey(sessionID string) string {
	return sessionID + "/signal"
}
