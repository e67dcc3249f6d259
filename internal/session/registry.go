package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/apperr"
)

// Registry owns every live session. The map is guarded by one mutex;
// per-session mutation is serialized by the session's own lock. The
// registry mutex is never held while waiting on a session mutex, so a
// session pinned by a long inference cannot stall lookups for the rest.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	clock    Clock
	ttl      time.Duration
}

func NewRegistry(clock Clock, ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		clock:    clock,
		ttl:      ttl,
	}
}

// Create registers a fresh session with an empty prompt.
func (r *Registry) Create(modelName string) *Session {
	now := r.clock.Now()
	s := &Session{
		id:             uuid.NewString(),
		modelName:      modelName,
		createdAt:      now,
		lastAccessedAt: now,
	}

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	return s
}

// Get returns the session and refreshes its liveness timestamp. Unknown
// or expired ids fail with SessionNotFound.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, apperr.New(apperr.KindSessionNotFound, "session does not exist")
	}
	s.touch(r.clock.Now())
	return s, nil
}

// Delete removes the session, returning it so the caller can archive it.
func (r *Registry) Delete(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, apperr.New(apperr.KindSessionNotFound, "session does not exist")
	}
	delete(r.sessions, id)
	return s, nil
}

// Sweep removes every session idle past the TTL and returns the removed
// sessions. The next request against a swept id sees SessionNotFound.
func (r *Registry) Sweep() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.clock.Now().Add(-r.ttl)
	var expired []*Session
	for id, s := range r.sessions {
		if s.lastAccess().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	return expired
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
