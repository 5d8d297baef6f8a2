package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// OccupancyCache tracks completed-miner counts per node so capacity checks
// don't hit MongoDB on every eligibility read. Mongo stays the source of
// truth; entries expire and are rebuilt from it.
type OccupancyCache interface {
	Set(ctx context.Context, nodeID string, count int) error
	Get(ctx context.Context, nodeID string) (int, bool, error)
	Increment(ctx context.Context, nodeID string) error
}

type occupancyCache struct {
	client *redis.Client
}

// NewOccupancyCache creates a new occupancy cache
func NewOccupancyCache(client *redis.Client) OccupancyCache {
	return &occupancyCache{
		client: client,
	}
}

func (c *occupancyCache) key(nodeID string) string {
	return "node:" + nodeID + ":occupancy"
}

func (c *occupancyCache) Set(ctx context.Context, nodeID string, count int) error {
	return c.client.Set(ctx, c.key(nodeID), count, 10*time.Minute).Err()
}

// Get returns (count, found, error); found is false on a cache miss.
func (c *occupancyCache) Get(ctx context.Context, nodeID string) (int, bool, error) {
	data, err := c.client.Get(ctx, c.key(nodeID)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil
		}
		return 0, false, err
	}
	count, err := strconv.Atoi(data)
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

func (c *occupancyCache) Increment(ctx context.Context, nodeID string) error {
	// INCR on a missing key would start from zero and undercount; only bump
	// an existing entry and let misses rebuild from Mongo.
	exists, err := c.client.Exists(ctx, c.key(nodeID)).Result()
	if err != nil || exists == 0 {
		return err
	}
	return c.client.Incr(ctx, c.key(nodeID)).Err()
}
