package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftmail/driftmail/pkg/logging"
)

func newTestManager(t *testing.T, driver *fakeDriver, maxSessions int) *Manager {
	t.Helper()
	return NewManager(NewStore(), driver, logging.NewTestLogger(), maxSessions, time.Second)
}

func TestManager_OpenGetCloseGet(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, 5)
	ctx := context.Background()

	s, err := m.Open(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Close(ctx, s.ID))

	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_OpenGeneratesUniqueIDs(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, 10)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		s, err := m.Open(ctx)
		require.NoError(t, err)
		assert.False(t, seen[s.ID], "id %q reused", s.ID)
		seen[s.ID] = true
	}
}

func TestManager_CapacityCeiling(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := m.Open(ctx)
		require.NoError(t, err)
	}

	_, err := m.Open(ctx)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 3, m.Active())
}

func TestManager_CapacityFreedByClose(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, 1)
	ctx := context.Background()

	first, err := m.Open(ctx)
	require.NoError(t, err)

	_, err = m.Open(ctx)
	require.ErrorIs(t, err, ErrCapacityExceeded)

	require.NoError(t, m.Close(ctx, first.ID))

	second, err := m.Open(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestManager_ConcurrentOpensNeverOvershoot(t *testing.T) {
	driver := &fakeDriver{launchDelay: 10 * time.Millisecond}
	m := newTestManager(t, driver, 4)
	ctx := context.Background()

	var opened, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Open(ctx); err != nil {
				assert.ErrorIs(t, err, ErrCapacityExceeded)
				rejected.Add(1)
			} else {
				opened.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(4), opened.Load())
	assert.Equal(t, int32(12), rejected.Load())
	assert.Equal(t, 4, m.Active())
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, 5)
	ctx := context.Background()

	s, err := m.Open(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Close(ctx, s.ID))

	err = m.Close(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_CloseUnknownID(t *testing.T) {
	m := newTestManager(t, &fakeDriver{}, 5)

	err := m.Close(context.Background(), "never-existed")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_CloseToleratesDeadBrowser(t *testing.T) {
	driver := &fakeDriver{
		next: func() *fakeBrowser {
			return &fakeBrowser{closeErr: errors.New("browser process already exited")}
		},
	}
	m := newTestManager(t, driver, 5)
	ctx := context.Background()

	s, err := m.Open(ctx)
	require.NoError(t, err)

	// The close error is swallowed and the entry removed regardless.
	require.NoError(t, m.Close(ctx, s.ID))
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_OpenLaunchFailure(t *testing.T) {
	driver := &fakeDriver{launchErr: errors.New("chromium crashed on startup")}
	m := newTestManager(t, driver, 2)

	_, err := m.Open(context.Background())
	assert.ErrorIs(t, err, ErrProvisioningFailed)
	assert.Equal(t, 0, m.Active())

	// The failed launch must not consume capacity.
	driver.mu.Lock()
	driver.launchErr = nil
	driver.mu.Unlock()
	_, err = m.Open(context.Background())
	assert.NoError(t, err)
}

func TestManager_OpenLaunchTimeout(t *testing.T) {
	driver := &fakeDriver{launchDelay: 200 * time.Millisecond}
	m := NewManager(NewStore(), driver, logging.NewTestLogger(), 2, 20*time.Millisecond)

	_, err := m.Open(context.Background())
	assert.ErrorIs(t, err, ErrProvisioningFailed)
	assert.Equal(t, 0, m.Active())
}

func TestManager_CloseAllDrainsEverything(t *testing.T) {
	var browsers []*fakeBrowser
	driver := &fakeDriver{
		next: func() *fakeBrowser {
			b := &fakeBrowser{}
			browsers = append(browsers, b)
			return b
		},
	}
	m := newTestManager(t, driver, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := m.Open(ctx)
		require.NoError(t, err)
	}
	require.Equal(t, 5, m.Active())

	m.CloseAll(ctx)

	assert.Equal(t, 0, m.Active())
	for _, b := range browsers {
		assert.True(t, b.isClosed())
	}
}

func TestManager_CloseAllContinuesOnError(t *testing.T) {
	calls := 0
	driver := &fakeDriver{
		next: func() *fakeBrowser {
			calls++
			if calls == 1 {
				return &fakeBrowser{closeErr: errors.New("unreachable")}
			}
			return &fakeBrowser{}
		},
	}
	m := newTestManager(t, driver, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := m.Open(ctx)
		require.NoError(t, err)
	}

	// One failing browser must not stop the drain of the other two.
	m.CloseAll(ctx)
	assert.Equal(t, 0, m.Active())
}

func TestSession_UseAfterCloseFails(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, 5)
	ctx := context.Background()

	s, err := m.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx, s.ID))

	err = s.Use(ctx, func(ctx context.Context, b Browser) error {
		t.Fatal("operation ran against a closed session")
		return nil
	})
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_UseSerializesOperations(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, 1)
	ctx := context.Background()

	s, err := m.Open(ctx)
	require.NoError(t, err)

	var inFlight, maxInFlight atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Use(ctx, func(ctx context.Context, b Browser) error {
				n := inFlight.Add(1)
				if n > maxInFlight.Load() {
					maxInFlight.Store(n)
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load(), "operations on one session interleaved")
}

func TestSession_UseRefreshesLastAccessed(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, 1)
	ctx := context.Background()

	s, err := m.Open(ctx)
	require.NoError(t, err)
	before := s.LastAccessedAt()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Use(ctx, func(ctx context.Context, b Browser) error { return nil }))
	assert.True(t, s.LastAccessedAt().After(before))

	// A failed operation does not refresh.
	after := s.LastAccessedAt()
	_ = s.Use(ctx, func(ctx context.Context, b Browser) error { return errors.New("boom") })
	assert.Equal(t, after, s.LastAccessedAt())
}

func TestManager_GetDoesNotExtendLifetime(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, 1)

	s, err := m.Open(context.Background())
	require.NoError(t, err)
	before := s.LastAccessedAt()

	time.Sleep(10 * time.Millisecond)
	_, err = m.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, before, s.LastAccessedAt())
}
