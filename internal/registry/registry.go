package registry

import (
	"sort"
	"sync"

	"github.com/dennisdiepolder/monti/softphone/internal/session"
)

// Registry holds the live session of every agent. Each agent owns at most
// one non-closed session at a time.
type Registry struct {
	mu        sync.RWMutex
	byAgent   map[string]*session.Session // agentID -> live session
	bySession map[string]*session.Session // sessionID -> live session
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		byAgent:   make(map[string]*session.Session),
		bySession: make(map[string]*session.Session),
	}
}

// Reserve inserts s if its agent has no live session. The check and the
// insert happen under one lock.
func (r *Registry) Reserve(s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byAgent[s.AgentID()]; ok {
		return &session.AgentBusyError{AgentID: s.AgentID(), SessionID: existing.ID()}
	}
	r.byAgent[s.AgentID()] = s
	r.bySession[s.ID()] = s
	return nil
}

// Get returns the live session with the given id
func (r *Registry) Get(sessionID string) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.bySession[sessionID]
	if !ok {
		return nil, &session.SessionNotFoundError{SessionID: sessionID}
	}
	return s, nil
}

// ForAgent returns the agent's live session, if any
func (r *Registry) ForAgent(agentID string) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byAgent[agentID]
	return s, ok
}

// Remove frees the slot held by sessionID. Removing an unknown session is a no-op.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.bySession[sessionID]
	if !ok {
		return
	}
	delete(r.bySession, sessionID)
	if r.byAgent[s.AgentID()] == s {
		delete(r.byAgent, s.AgentID())
	}
}

// List returns all live sessions ordered by agent id
func (r *Registry) List() []*session.Session {
	r.mu.RLock()
	sessions := make([]*session.Session, 0, len(r.bySession))
	for _, s := range r.bySession {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].AgentID() < sessions[j].AgentID()
	})
	return sessions
}

// Count returns the number of live sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySession)
}
