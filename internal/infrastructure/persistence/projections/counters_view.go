package projections

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/progression"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ErrSnapshotMissing is returned when no usable snapshot is stored for
// a learner.
var ErrSnapshotMissing = errors.New("projections: no counter snapshot")

// ══════════════════════════════════════════════════════════════════════════════
// COUNTERS VIEW
// ══════════════════════════════════════════════════════════════════════════════

// CountersView holds the last successfully fetched counter snapshot per
// learner. It satisfies the sync command's cache port and the progress
// query's read port, so reads keep working from stale data when the
// platform is unreachable.
type CountersView struct {
	mu        sync.RWMutex
	snapshots map[shared.LearnerID]progression.Counters
	ttl       time.Duration
}

// NewCountersView creates an empty counters view. A zero ttl means
// snapshots never expire.
func NewCountersView(ttl time.Duration) *CountersView {
	return &CountersView{
		snapshots: make(map[shared.LearnerID]progression.Counters),
		ttl:       ttl,
	}
}

// Get returns the last snapshot for a learner.
// Returns ErrSnapshotMissing when nothing usable is stored.
func (v *CountersView) Get(ctx context.Context, learnerID shared.LearnerID) (progression.Counters, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	c, ok := v.snapshots[learnerID]
	if !ok {
		return progression.Counters{}, ErrSnapshotMissing
	}

	if v.ttl > 0 && time.Since(c.FetchedAt) > v.ttl {
		return progression.Counters{}, ErrSnapshotMissing
	}

	return c, nil
}

// Set stores a snapshot for a learner.
func (v *CountersView) Set(ctx context.Context, learnerID shared.LearnerID, c progression.Counters) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snapshots[learnerID] = c
	return nil
}

// Invalidate drops the snapshot for a learner.
func (v *CountersView) Invalidate(ctx context.Context, learnerID shared.LearnerID) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.snapshots, learnerID)
	return nil
}

// Len returns the number of stored snapshots.
func (v *CountersView) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.snapshots)
}
