package session

import (
	"context"
	"time"

	"github.com/driftmail/driftmail/pkg/logging"
)

// Reaper periodically evicts sessions older than the configured lifetime.
// It is purely an eviction policy over the store: it never blocks session
// creation, and a failure on one session does not stop the sweep of the rest.
type Reaper struct {
	manager  *Manager
	log      *logging.Logger
	interval time.Duration
	lifetime time.Duration
}

// NewReaper creates a reaper sweeping every interval, evicting sessions whose
// age exceeds lifetime.
func NewReaper(manager *Manager, log *logging.Logger, interval, lifetime time.Duration) *Reaper {
	return &Reaper{
		manager:  manager,
		log:      log,
		interval: interval,
		lifetime: lifetime,
	}
}

// Run sweeps until ctx is cancelled. Intended to run as a goroutine owned by
// the process lifecycle, not as an untracked timer.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep closes every expired session, logging the outcome per session and
// continuing on error. It acts on a snapshot, so sessions created or closed
// mid-sweep are simply picked up next time.
func (r *Reaper) Sweep(ctx context.Context) {
	now := time.Now()
	for _, s := range r.manager.store.Snapshot() {
		age := s.Age(now)
		if age <= r.lifetime {
			continue
		}
		if err := r.manager.Close(ctx, s.ID); err != nil {
			// Already closed by an explicit kill racing the sweep.
			r.log.Debugf("reaper: session %s gone before eviction: %v", s.ID, err)
			continue
		}
		r.log.Infof("reaper: evicted session %s (age %s)", s.ID, age.Round(time.Second))
	}
}
