package hub

import (
	"sync"
)

// SessionRegistry tracks connected sessions by id.
type SessionRegistry struct {
	mu    sync.RWMutex
	store map[string]Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{store: make(map[string]Session)}
}

func (r *SessionRegistry) Store(session Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store[session.Info().ID] = session
}

func (r *SessionRegistry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.store[id]
	return session, ok
}

func (r *SessionRegistry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.store, id)
}

func (r *SessionRegistry) List() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]Session, 0, len(r.store))
	for _, session := range r.store {
		sessions = append(sessions, session)
	}
	return sessions
}
