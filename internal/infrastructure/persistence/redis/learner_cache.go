package redis

import (
	"context"
	"errors"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/learner"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// LearnerCache implements learner.Cache on top of the generic Redis Cache.
// Cached snapshots serve degraded reads when Postgres or the platform
// is unavailable; the repository stays the source of truth.
type LearnerCache struct {
	cache *Cache
}

// NewLearnerCache creates a new LearnerCache.
func NewLearnerCache(cache *Cache) *LearnerCache {
	return &LearnerCache{cache: cache}
}

// Get returns a cached learner snapshot.
// Returns shared.ErrLearnerNotFound on a cache miss.
func (c *LearnerCache) Get(ctx context.Context, id shared.LearnerID) (*learner.Learner, error) {
	var l learner.Learner
	if err := c.cache.Get(ctx, LearnerKey(string(id)), &l); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, shared.ErrLearnerNotFound
		}
		return nil, err
	}
	return &l, nil
}

// Set stores a learner snapshot with the given TTL.
func (c *LearnerCache) Set(ctx context.Context, l *learner.Learner, ttl time.Duration) error {
	if l == nil {
		return nil
	}
	if ttl == 0 {
		ttl = TTLLearnerCache
	}
	return c.cache.Set(ctx, LearnerKey(string(l.ID)), l, ttl)
}

// Invalidate removes a learner's cached snapshot.
func (c *LearnerCache) Invalidate(ctx context.Context, id shared.LearnerID) error {
	return c.cache.Delete(ctx, LearnerKey(string(id)))
}
