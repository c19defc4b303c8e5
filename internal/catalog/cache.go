package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ent0n29/concierge/internal/logger"
)

const snapshotKey = "concierge:catalog:snapshot"

// RedisCache keeps the upstream snapshot in Redis so that catalog reads on every
// turn do not hit the source of truth. Redis failures degrade to the upstream.
type RedisCache struct {
	client   *redis.Client
	upstream Provider
	ttl      time.Duration
	log      logger.Logger
}

func NewRedisCache(client *redis.Client, upstream Provider, ttl time.Duration, log logger.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisCache{
		client:   client,
		upstream: upstream,
		ttl:      ttl,
		log:      log.With(map[string]any{"component": "catalog_cache"}),
	}
}

func (c *RedisCache) Products(ctx context.Context) ([]Product, error) {
	raw, err := c.client.Get(ctx, snapshotKey).Bytes()
	switch {
	case err == nil:
		var products []Product
		if jsonErr := json.Unmarshal(raw, &products); jsonErr == nil {
			return products, nil
		}
		c.log.Warn("discarding undecodable catalog snapshot", nil)
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn("catalog cache read failed", map[string]any{"error": err})
	}

	products, err := c.upstream.Products(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.store(ctx, products); err != nil {
		c.log.Warn("catalog cache write failed", map[string]any{"error": err})
	}
	return products, nil
}

// Invalidate drops the cached snapshot so the next read goes upstream.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, snapshotKey).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (c *RedisCache) store(ctx context.Context, products []Product) error {
	payload, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, snapshotKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
