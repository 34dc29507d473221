package session

import (
	"fmt"
	"sync"
)

// Store is the concurrent mapping from session id to live session. It is the
// only shared mutable state in the system; the manager and reaper both go
// through it and never hold references behind its back.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

// Put inserts a session. Ids are random so a collision should never happen,
// but it is still checked.
func (st *Store) Put(s *Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, exists := st.sessions[s.ID]; exists {
		return fmt.Errorf("session %q: %w", s.ID, ErrDuplicateID)
	}
	st.sessions[s.ID] = s
	return nil
}

// Get returns the session for id, or ErrNotFound.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, exists := st.sessions[id]
	if !exists {
		return nil, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return s, nil
}

// Remove deletes and returns the entry for id. The second return is false if
// the id was already absent.
func (st *Store) Remove(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, exists := st.sessions[id]
	if !exists {
		return nil, false
	}
	delete(st.sessions, id)
	return s, true
}

// Snapshot returns a copy of the current sessions. Iterating the snapshot is
// safe while other goroutines mutate the store; the reaper acts on the copy
// rather than holding the lock across closes.
func (st *Store) Snapshot() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of active sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
