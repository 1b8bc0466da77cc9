package game

import (
	"fmt"
	"sort"
	"sync"
)

// Entry guards one session. All access to the session goes through Read or
// Mutate so that concurrent requests for the same session are serialized.
type Entry struct {
	mu      sync.RWMutex
	session *GameSession
}

// Read runs fn with a consistent view of the session. fn must not keep
// references to the session after it returns.
func (en *Entry) Read(fn func(s *GameSession)) {
	en.mu.RLock()
	defer en.mu.RUnlock()
	fn(en.session)
}

// Mutate runs fn under the write lock. When fn returns an error every change
// it made is rolled back and the session is left exactly as before.
func (en *Entry) Mutate(fn func(s *GameSession) error) error {
	en.mu.Lock()
	defer en.mu.Unlock()

	bookmark := en.session.Clone()
	if err := fn(en.session); err != nil {
		en.session = bookmark
		return err
	}
	return nil
}

// Snapshot returns a deep copy of the session.
func (en *Entry) Snapshot() *GameSession {
	en.mu.RLock()
	defer en.mu.RUnlock()
	return en.session.Clone()
}

// Registry maps session ids to sessions. The map lock is only held for
// lookups, never while a session is being read or mutated.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Entry),
	}
}

// Create inserts a new session.
func (r *Registry) Create(session *GameSession) (*Entry, error) {
	if session == nil || session.ID == "" {
		return nil, fmt.Errorf("session must have an id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return nil, fmt.Errorf("session %s already registered", session.ID)
	}
	entry := &Entry{session: session}
	r.sessions[session.ID] = entry
	return entry, nil
}

// Get returns the entry for id.
func (r *Registry) Get(id string) (*Entry, error) {
	r.mu.RLock()
	entry, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return entry, nil
}

// Remove drops a session. It reports whether the session existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// IDs returns the registered session ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
