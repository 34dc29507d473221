package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftmail/driftmail/pkg/logging"
)

// Manager owns the session lifecycle: creation against the capacity ceiling,
// lookup, termination, and the shutdown drain. All state lives in the
// injected Store; browsers come from the injected Driver.
type Manager struct {
	store  *Store
	driver Driver
	log    *logging.Logger

	maxSessions   int
	launchTimeout time.Duration

	// pending counts launches that have reserved capacity but are not yet
	// in the store, so concurrent opens cannot overshoot the ceiling while
	// a browser is still starting.
	mu      sync.Mutex
	pending int
}

// NewManager creates a manager enforcing the given ceiling. launchTimeout
// bounds how long a browser may take to start before the open fails with
// ErrProvisioningFailed.
func NewManager(store *Store, driver Driver, log *logging.Logger, maxSessions int, launchTimeout time.Duration) *Manager {
	return &Manager{
		store:         store,
		driver:        driver,
		log:           log,
		maxSessions:   maxSessions,
		launchTimeout: launchTimeout,
	}
}

// Open provisions a new session: reserves capacity, launches a browser
// within the startup timeout, and registers it under a fresh random id.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	if err := m.reserve(); err != nil {
		return nil, err
	}
	released := false
	defer func() {
		if !released {
			m.release()
		}
	}()

	launchCtx, cancel := context.WithTimeout(ctx, m.launchTimeout)
	defer cancel()

	browser, err := m.driver.Launch(launchCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("launch exceeded %s: %w", m.launchTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
	}

	s := newSession(uuid.NewString(), browser)
	if err := m.store.Put(s); err != nil {
		_ = browser.Close(ctx)
		return nil, err
	}
	// The session now counts via the store; drop the reservation.
	m.release()
	released = true

	m.log.Infof("session %s opened (%d/%d active)", s.ID, m.store.Len(), m.maxSessions)
	return s, nil
}

// Get looks up a session by id. A lookup alone never extends the session's
// lifetime; that happens only on successful use.
func (m *Manager) Get(id string) (*Session, error) {
	return m.store.Get(id)
}

// Close terminates a session. Idempotent: an absent id returns ErrNotFound
// and nothing else. The store entry is removed even when the underlying
// browser process is already dead; close failures are logged, not returned.
func (m *Manager) Close(ctx context.Context, id string) error {
	s, ok := m.store.Remove(id)
	if !ok {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}

	if err := s.close(ctx); err != nil && !errors.Is(err, ErrSessionClosed) {
		m.log.Warnf("session %s: browser close failed: %v", id, err)
	} else {
		m.log.Infof("session %s closed", id)
	}
	return nil
}

// CloseAll drains every session, used at process shutdown. Individual close
// failures are logged and do not abort the drain of the remaining sessions.
func (m *Manager) CloseAll(ctx context.Context) {
	snapshot := m.store.Snapshot()
	if len(snapshot) == 0 {
		return
	}
	m.log.Infof("draining %d session(s)", len(snapshot))

	var wg sync.WaitGroup
	for _, s := range snapshot {
		if _, ok := m.store.Remove(s.ID); !ok {
			continue
		}
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			if err := s.close(ctx); err != nil && !errors.Is(err, ErrSessionClosed) {
				m.log.Warnf("session %s: close during drain failed: %v", s.ID, err)
			}
		}(s)
	}
	wg.Wait()
}

// Active returns the number of live sessions.
func (m *Manager) Active() int {
	return m.store.Len()
}

func (m *Manager) reserve() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store.Len()+m.pending >= m.maxSessions {
		return fmt.Errorf("%w (%d)", ErrCapacityExceeded, m.maxSessions)
	}
	m.pending++
	return nil
}

func (m *Manager) release() {
	m.mu.Lock()
	m.pending--
	m.mu.Unlock()
}
