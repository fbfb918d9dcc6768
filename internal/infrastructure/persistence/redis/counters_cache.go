package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/eduforge/progression-hub/internal/domain/progression"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// CountersCache stores the last successfully fetched platform counter
// snapshot per learner. Reads fall back to it when the platform is down,
// so the TTL is deliberately long.
type CountersCache struct {
	cache *Cache
}

// NewCountersCache creates a new CountersCache.
func NewCountersCache(cache *Cache) *CountersCache {
	return &CountersCache{cache: cache}
}

// Get returns the cached counter snapshot for a learner.
func (c *CountersCache) Get(ctx context.Context, learnerID shared.LearnerID) (progression.Counters, error) {
	var counters progression.Counters
	if err := c.cache.Get(ctx, CountersKey(string(learnerID)), &counters); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return progression.Counters{}, fmt.Errorf("no cached counters for %s: %w", learnerID, ErrCacheMiss)
		}
		return progression.Counters{}, err
	}
	return counters, nil
}

// Set stores a counter snapshot for a learner.
func (c *CountersCache) Set(ctx context.Context, learnerID shared.LearnerID, counters progression.Counters) error {
	return c.cache.Set(ctx, CountersKey(string(learnerID)), counters, TTLCountersCache)
}
