package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/futbolpi/harmonic-realm-sub000/internal/model"
)

// NodeCache caches node records to keep catalog reads off MongoDB
type NodeCache interface {
	Set(ctx context.Context, node *model.Node) error
	Get(ctx context.Context, id string) (*model.Node, error)
	Delete(ctx context.Context, id string) error
}

type nodeCache struct {
	client *redis.Client
}

// NewNodeCache creates a new node cache
func NewNodeCache(client *redis.Client) NodeCache {
	return &nodeCache{
		client: client,
	}
}

func (c *nodeCache) key(id string) string {
	return "node:" + id
}

func (c *nodeCache) Set(ctx context.Context, node *model.Node) error {
	data, err := json.Marshal(node)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(node.ID), data, 5*time.Minute).Err()
}

func (c *nodeCache) Get(ctx context.Context, id string) (*model.Node, error) {
	data, err := c.client.Get(ctx, c.key(id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}
	var node model.Node
	err = json.Unmarshal([]byte(data), &node)
	return &node, err
}

func (c *nodeCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.key(id)).Err()
}
