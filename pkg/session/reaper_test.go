package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftmail/driftmail/pkg/logging"
)

func TestReaper_EvictsOnlyExpiredSessions(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, 5)
	ctx := context.Background()

	old, err := m.Open(ctx)
	require.NoError(t, err)
	young, err := m.Open(ctx)
	require.NoError(t, err)

	// Age one session past the lifetime.
	old.CreatedAt = time.Now().Add(-2 * time.Minute)

	r := NewReaper(m, logging.NewTestLogger(), time.Minute, time.Minute)
	r.Sweep(ctx)

	_, err = m.Get(old.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := m.Get(young.ID)
	require.NoError(t, err)
	assert.Same(t, young, got)
}

func TestReaper_SweepContinuesPastFailures(t *testing.T) {
	calls := 0
	driver := &fakeDriver{
		next: func() *fakeBrowser {
			calls++
			if calls == 1 {
				return &fakeBrowser{closeErr: assert.AnError}
			}
			return &fakeBrowser{}
		},
	}
	m := newTestManager(t, driver, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s, err := m.Open(ctx)
		require.NoError(t, err)
		s.CreatedAt = time.Now().Add(-time.Hour)
	}

	r := NewReaper(m, logging.NewTestLogger(), time.Minute, time.Minute)
	r.Sweep(ctx)

	assert.Equal(t, 0, m.Active())
}

func TestReaper_SweepRacesExplicitClose(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, 1)
	ctx := context.Background()

	s, err := m.Open(ctx)
	require.NoError(t, err)
	s.CreatedAt = time.Now().Add(-time.Hour)

	// Explicit kill wins the race; the sweep must treat the missing
	// session as already handled.
	require.NoError(t, m.Close(ctx, s.ID))

	r := NewReaper(m, logging.NewTestLogger(), time.Minute, time.Minute)
	r.Sweep(ctx)
	assert.Equal(t, 0, m.Active())
}

func TestReaper_RunStopsOnCancel(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, 1)

	r := NewReaper(m, logging.NewTestLogger(), 5*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after cancellation")
	}
}

func TestReaper_EvictedSessionLookupDuringSweep(t *testing.T) {
	driver := &fakeDriver{}
	m := newTestManager(t, driver, 4)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		s, err := m.Open(ctx)
		require.NoError(t, err)
		s.CreatedAt = time.Now().Add(-time.Hour)
	}

	r := NewReaper(m, logging.NewTestLogger(), time.Minute, time.Minute)

	// Lookups concurrent with the sweep must see either the live session
	// or NotFound, never a torn state.
	snapshot := m.store.Snapshot()
	done := make(chan struct{})
	go func() {
		r.Sweep(ctx)
		close(done)
	}()
	for _, s := range snapshot {
		got, err := m.Get(s.ID)
		if err != nil {
			assert.ErrorIs(t, err, ErrNotFound)
		} else {
			assert.Same(t, s, got)
		}
	}
	<-done
	assert.Equal(t, 0, m.Active())
}
