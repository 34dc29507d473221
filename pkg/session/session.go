package session

import (
	"context"
	"sync"
	"time"
)

// Session couples one browser handle with its bookkeeping metadata. All
// browser access goes through Use, which serializes operations per session;
// two concurrent callers against the same id never interleave navigations.
type Session struct {
	// ID is the opaque random identifier for this session.
	ID string

	// CreatedAt is when the session was provisioned. The reaper evicts
	// sessions by age from this timestamp.
	CreatedAt time.Time

	mu           sync.Mutex
	browser      Browser
	email        string
	lastAccessed time.Time
	closed       bool
}

// newSession wraps a freshly launched browser.
func newSession(id string, browser Browser) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		browser:      browser,
		lastAccessed: now,
	}
}

// Use runs fn against the session's browser while holding the per-session
// lock. The last-accessed timestamp is refreshed only when fn succeeds;
// lookups alone do not extend a session's life. Returns ErrSessionClosed if
// the session was terminated before fn could run.
func (s *Session) Use(ctx context.Context, fn func(ctx context.Context, b Browser) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := fn(ctx, s.browser); err != nil {
		return err
	}

	s.lastAccessed = time.Now()
	return nil
}

// close marks the session dead and releases its browser. Idempotent; the
// first caller gets the browser's close error, later callers get
// ErrSessionClosed.
func (s *Session) close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	return s.browser.Close(ctx)
}

// SetEmail records the provisioned address once the webmail site has
// materialized it.
func (s *Session) SetEmail(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = addr
}

// Email returns the provisioned address, or "" before provisioning completes.
func (s *Session) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

// LastAccessedAt returns the time of the last successful operation.
func (s *Session) LastAccessedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccessed
}

// Age returns how long the session has existed.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}
