package redis

import (
	"context"

	"github.com/eduforge/progression-hub/internal/domain/learner"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// CachedLearnerRepository decorates a learner.Repository with a Redis
// read-through cache for single-learner lookups. Writes invalidate the
// snapshot so the next read repopulates it. Bulk and scan queries go
// straight to the underlying repository.
type CachedLearnerRepository struct {
	learner.Repository
	cache learner.Cache
}

// NewCachedLearnerRepository wraps repo with the given cache.
func NewCachedLearnerRepository(repo learner.Repository, cache learner.Cache) *CachedLearnerRepository {
	return &CachedLearnerRepository{
		Repository: repo,
		cache:      cache,
	}
}

// GetByID returns the cached snapshot when present, otherwise reads the
// repository and caches the result. Cache failures degrade to a plain
// repository read.
func (r *CachedLearnerRepository) GetByID(ctx context.Context, id shared.LearnerID) (*learner.Learner, error) {
	if cached, err := r.cache.Get(ctx, id); err == nil {
		return cached, nil
	}

	l, err := r.Repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Best effort: a full cache must not fail the read.
	_ = r.cache.Set(ctx, l, 0)

	return l, nil
}

// Update writes through to the repository and drops the stale snapshot.
func (r *CachedLearnerRepository) Update(ctx context.Context, l *learner.Learner) error {
	if err := r.Repository.Update(ctx, l); err != nil {
		return err
	}
	return r.cache.Invalidate(ctx, l.ID)
}
