package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// EchoCache holds per-user echo transmission buffs: a multiplier below 1
// that shortens the lock-in snapshot of the next session the user starts.
// Buffs are granted by an external system; this cache only reads and burns.
type EchoCache interface {
	Grant(ctx context.Context, userID string, multiplier float64, ttl time.Duration) error
	// Peek reads the user's buff without burning it. Returns (1, false) when
	// no buff is active.
	Peek(ctx context.Context, userID string) (float64, bool, error)
	// Consume reads and removes the user's buff. Returns (1, false) when no
	// buff is active.
	Consume(ctx context.Context, userID string) (float64, bool, error)
}

type echoCache struct {
	client *redis.Client
}

// NewEchoCache creates a new echo transmission cache
func NewEchoCache(client *redis.Client) EchoCache {
	return &echoCache{
		client: client,
	}
}

func (c *echoCache) key(userID string) string {
	return "echo:" + userID
}

func (c *echoCache) Grant(ctx context.Context, userID string, multiplier float64, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(userID), multiplier, ttl).Err()
}

func (c *echoCache) Peek(ctx context.Context, userID string) (float64, bool, error) {
	data, err := c.client.Get(ctx, c.key(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return 1, false, nil
		}
		return 1, false, err
	}
	multiplier, ok := parseMultiplier(data)
	return multiplier, ok, nil
}

func (c *echoCache) Consume(ctx context.Context, userID string) (float64, bool, error) {
	data, err := c.client.GetDel(ctx, c.key(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return 1, false, nil
		}
		return 1, false, err
	}
	multiplier, ok := parseMultiplier(data)
	return multiplier, ok, nil
}

// parseMultiplier accepts only accelerating multipliers in (0, 1).
func parseMultiplier(data string) (float64, bool) {
	multiplier, err := strconv.ParseFloat(data, 64)
	if err != nil || multiplier <= 0 || multiplier >= 1 {
		return 1, false
	}
	return multiplier, true
}
