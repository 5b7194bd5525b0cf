package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const productKeyPrefix = "products:"

// Cache is an optional redis-backed cache for per-user product summaries.
// A nil *Cache is valid and misses everything, so callers never branch on
// whether redis is configured.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to redis at addr. An empty addr returns a nil cache.
func New(addr string) (*Cache, error) {
	if addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Printf("Connected to redis at %s", addr)

	return &Cache{client: client, ttl: time.Minute}, nil
}

func (c *Cache) Close() {
	if c != nil && c.client != nil {
		c.client.Close()
	}
}

// GetProducts loads a user's cached summary list into dest. Returns false on
// any miss or decode problem.
func (c *Cache) GetProducts(ctx context.Context, userID string, dest interface{}) bool {
	if c == nil || c.client == nil {
		return false
	}
	raw, err := c.client.Get(ctx, productKeyPrefix+userID).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		log.Printf("cache: corrupt entry for user %s: %v", userID, err)
		return false
	}
	return true
}

// SetProducts stores a user's summary list.
func (c *Cache) SetProducts(ctx context.Context, userID string, value interface{}) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, productKeyPrefix+userID, raw, c.ttl).Err(); err != nil {
		log.Printf("cache: set for user %s failed: %v", userID, err)
	}
}

// InvalidateUser drops one user's cached list after a track/untrack.
func (c *Cache) InvalidateUser(ctx context.Context, userID string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, productKeyPrefix+userID).Err(); err != nil {
		log.Printf("cache: invalidate for user %s failed: %v", userID, err)
	}
}

// InvalidateAll drops every cached product list, used after a sweep rewrites
// latest prices across the board.
func (c *Cache) InvalidateAll(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, productKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			log.Printf("cache: delete %s failed: %v", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		log.Printf("cache: scan failed: %v", err)
	}
}
