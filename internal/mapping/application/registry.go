package application

import (
	"sync"
	"time"
)

// Registry keeps the open sessions of the service.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	clock    Clock
	// ownClock is set when the caller supplied the clock.
	ownClock bool
}

// NewRegistry constructs a registry. A zero ttl keeps sessions until removed.
func NewRegistry(ttl time.Duration, clock Clock) *Registry {
	r := &Registry{sessions: make(map[string]*Session), ttl: ttl, clock: clock, ownClock: clock != nil}
	if clock == nil {
		r.clock = SystemClock{}
	}
	return r
}

// adoptClock makes a registry built without a clock expire sessions on the
// clock that stamps them.
func (r *Registry) adoptClock(clock Clock) {
	if clock == nil {
		return
	}
	r.mu.Lock()
	if !r.ownClock {
		r.clock = clock
	}
	r.mu.Unlock()
}

// Add registers a session, replacing any session with the same id.
func (r *Registry) Add(session *Session) {
	if session == nil {
		return
	}
	r.mu.Lock()
	r.sessions[session.ID()] = session
	r.mu.Unlock()
}

// Get returns a live session.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	session := r.sessions[id]
	expired := session != nil && r.expired(session)
	r.mu.RUnlock()
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if expired {
		r.Remove(id)
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Remove drops a session.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Sweep removes expired sessions and returns how many were dropped.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, session := range r.sessions {
		if r.expired(session) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) expired(session *Session) bool {
	if r.ttl <= 0 {
		return false
	}
	return r.clock.Now().Sub(session.idleSince()) > r.ttl
}
