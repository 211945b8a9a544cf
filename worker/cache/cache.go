package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"mediastudio/api/models"
)

// Key scheme matches api/cache so the status endpoint reads what the worker
// writes.
const (
	progressKeyPrefix = "render:progress:"
	progressTTL       = 30 * time.Minute
)

type ProgressCache struct {
	client *redis.Client
}

func NewProgressCache(client *redis.Client) *ProgressCache {
	return &ProgressCache{client: client}
}

func (c *ProgressCache) Set(ctx context.Context, jobID string, p models.JobProgress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, progressKeyPrefix+jobID, data, progressTTL).Err()
}
