package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeCache reserves human-shareable join codes so two callers never receive the same one
type CodeCache interface {
	Reserve(ctx context.Context, code, owner string) (bool, error)
	Owner(ctx context.Context, code string) (string, error)
	Release(ctx context.Context, code string) error
}

type codeCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCodeCache creates a new join code cache
func NewCodeCache(client *redis.Client) CodeCache {
	return &codeCache{
		client: client,
		ttl:    24 * time.Hour, // unused codes are released after a day
	}
}

func (c *codeCache) key(code string) string {
	return fmt.Sprintf("code:%s", code)
}

func (c *codeCache) Reserve(ctx context.Context, code, owner string) (bool, error) {
	return c.client.SetNX(ctx, c.key(code), owner, c.ttl).Result()
}

// Owner returns who reserved code, or "" when it is not reserved.
func (c *codeCache) Owner(ctx context.Context, code string) (string, error) {
	owner, err := c.client.Get(ctx, c.key(code)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return owner, err
}

func (c *codeCache) Release(ctx context.Context, code string) error {
	return c.client.Del(ctx, c.key(code)).Err()
}
