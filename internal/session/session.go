package session

import (
	"sync"
	"time"

	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/engine"
)

// Session binds an identity, a model selection, an immutable prompt, a
// token history, and liveness timestamps. The retained snapshot is the
// most recent distribution computed for this session; it is what a
// subsequent selection is validated against, and any mutation clears it.
type Session struct {
	mu sync.Mutex

	id            string
	modelName     string
	initialPrompt string
	history       History
	createdAt     time.Time

	// accessMu guards only lastAccessedAt. It is a leaf lock: it is
	// never held while acquiring another lock and never held across
	// inference, so liveness bookkeeping stays cheap even while s.mu
	// is pinned by a slow model call.
	accessMu       sync.Mutex
	lastAccessedAt time.Time

	snapshot *engine.Snapshot
}

func (s *Session) ID() string { return s.id }

// touch refreshes the liveness timestamp.
func (s *Session) touch(now time.Time) {
	s.accessMu.Lock()
	s.lastAccessedAt = now
	s.accessMu.Unlock()
}

// lastAccess reads the liveness timestamp.
func (s *Session) lastAccess() time.Time {
	s.accessMu.Lock()
	defer s.accessMu.Unlock()
	return s.lastAccessedAt
}

// currentText must be called with s.mu held.
func (s *Session) currentText() string {
	return s.history.CurrentText(s.initialPrompt)
}

// setPrompt resets the session to a fresh prompt: history cleared,
// snapshot invalidated. Must be called with s.mu held.
func (s *Session) setPrompt(prompt string) {
	s.initialPrompt = prompt
	s.history.Reset()
	s.snapshot = nil
}

// State is an immutable dump of a session, safe to hand to transports.
type State struct {
	ID              string         `json:"sessionId"`
	ModelName       string         `json:"modelName"`
	InitialPrompt   string         `json:"initialPrompt"`
	CurrentText     string         `json:"currentText"`
	TokenHistory    []HistoryEntry `json:"tokenHistory"`
	GenerationCount int            `json:"generationCount"`
	CreatedAt       time.Time      `json:"createdAt"`
	LastAccessedAt  time.Time      `json:"lastAccessedAt"`
}

// state must be called with s.mu held.
func (s *Session) state() State {
	return State{
		ID:              s.id,
		ModelName:       s.modelName,
		InitialPrompt:   s.initialPrompt,
		CurrentText:     s.currentText(),
		TokenHistory:    s.history.Entries(),
		GenerationCount: s.history.Len(),
		CreatedAt:       s.createdAt,
		LastAccessedAt:  s.lastAccess(),
	}
}
