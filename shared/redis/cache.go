package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ViewCache is a read-through JSON cache for one projection type. A nil
// ViewCache, or one built without a client, never hits and never stores,
// so callers fall through to the store on every read.
type ViewCache[T any] struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewViewCache binds a cache to client. ttl 0 keeps entries until evicted.
func NewViewCache[T any](client *goredis.Client, ttl time.Duration) *ViewCache[T] {
	return &ViewCache[T]{client: client, ttl: ttl}
}

func (c *ViewCache[T]) enabled() bool { return c != nil && c.client != nil }

// Get reports a miss for absent keys, undecodable values and Redis errors alike.
func (c *ViewCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	if !c.enabled() {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			log.Printf("ViewCache: read error for key %s: %v", key, err)
		}
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		log.Printf("ViewCache: dropping undecodable value for key %s: %v", key, err)
		return nil, false
	}
	return &v, true
}

// Set stores value under key. Failures are logged; the cache is advisory.
func (c *ViewCache[T]) Set(ctx context.Context, key string, value *T) {
	if !c.enabled() || value == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("ViewCache: marshal error for key %s: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("ViewCache: write error for key %s: %v", key, err)
	}
}

// GetOrLoad returns the cached value or calls load and caches its result.
// Load errors are returned uncached.
func (c *ViewCache[T]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (*T, error)) (*T, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.Set(ctx, key, v)
	return v, nil
}
