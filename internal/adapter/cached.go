package adapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/amishk599/ajirawise/internal/model"
)

// Ensure CachedSource implements model.JobSource.
var _ model.JobSource = (*CachedSource)(nil)

// Cache is the byte cache CachedSource stores candidate lists in. A miss
// returns nil with no error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedSource serves candidate lists from a cache for ttl and collapses
// concurrent misses for the same category into one upstream fetch.
// Empty results are not cached.
type CachedSource struct {
	inner  model.JobSource
	cache  Cache
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

func NewCachedSource(inner model.JobSource, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedSource {
	return &CachedSource{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedSource) FetchCandidates(ctx context.Context, category string) []model.JobPosting {
	key := "candidates:" + category

	if data, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("candidate cache read failed", "category", category, "error", err)
	} else if data != nil {
		var jobs []model.JobPosting
		if err := json.Unmarshal(data, &jobs); err == nil {
			c.logger.Debug("candidate cache hit", "category", category, "count", len(jobs))
			return jobs
		}
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		jobs := c.inner.FetchCandidates(ctx, category)
		if len(jobs) == 0 {
			return jobs, nil
		}
		data, err := json.Marshal(jobs)
		if err == nil {
			err = c.cache.Set(ctx, key, data, c.ttl)
		}
		if err != nil {
			c.logger.Warn("candidate cache write failed", "category", category, "error", err)
		}
		return jobs, nil
	})
	return v.([]model.JobPosting)
}
