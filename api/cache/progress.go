package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mediastudio/api/database"
	"mediastudio/api/models"
)

const (
	progressKeyPrefix = "render:progress:"
	progressTTL       = 30 * time.Minute
)

// ProgressCache mirrors per-job progress into Redis so the status endpoint
// does not hit Postgres on every poll.
type ProgressCache struct {
	cache *database.Cache
}

func NewProgressCache(cache *database.Cache) *ProgressCache {
	return &ProgressCache{cache: cache}
}

func (pc *ProgressCache) Get(ctx context.Context, jobID string) (*models.JobProgress, error) {
	key := fmt.Sprintf("%s%s", progressKeyPrefix, jobID)

	data, err := pc.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var progress models.JobProgress
	if err := json.Unmarshal([]byte(data), &progress); err != nil {
		return nil, err
	}

	return &progress, nil
}

func (pc *ProgressCache) Set(ctx context.Context, jobID string, progress models.JobProgress) error {
	key := fmt.Sprintf("%s%s", progressKeyPrefix, jobID)

	data, err := json.Marshal(progress)
	if err != nil {
		return err
	}

	return pc.cache.Set(ctx, key, data, progressTTL)
}

func (pc *ProgressCache) Delete(ctx context.Context, jobID string) error {
	key := fmt.Sprintf("%s%s", progressKeyPrefix, jobID)
	return pc.cache.Del(ctx, key)
}
