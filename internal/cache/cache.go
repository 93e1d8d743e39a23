// Package cache keeps the public profile fields of users in Redis so that
// fan-out paths can decorate notifications and messages without a store
// round trip per recipient.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/npezzotti/flashchat/internal/types"
	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "flashchat:profile:"

type ProfileCache interface {
	Get(ctx context.Context, id string) (types.PublicUser, bool, error)
	Set(ctx context.Context, u types.PublicUser) error
	Delete(ctx context.Context, id string) error
}

type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Sets   uint64 `json:"sets"`
	Errors uint64 `json:"errors"`
}

// RedisProfileCache stores profiles as JSON under prefix+id with a fixed TTL.
type RedisProfileCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	stats  Stats
}

func NewRedisProfileCache(client *redis.Client, prefix string, ttl time.Duration) *RedisProfileCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisProfileCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *RedisProfileCache) Get(ctx context.Context, id string) (types.PublicUser, bool, error) {
	var u types.PublicUser

	data, err := c.client.Get(ctx, c.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			atomic.AddUint64(&c.stats.Misses, 1)
			return u, false, nil
		}
		atomic.AddUint64(&c.stats.Errors, 1)
		return u, false, fmt.Errorf("cache get: %w", err)
	}

	if err := json.Unmarshal(data, &u); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return u, false, fmt.Errorf("cache unmarshal: %w", err)
	}

	atomic.AddUint64(&c.stats.Hits, 1)
	return u, true, nil
}

func (c *RedisProfileCache) Set(ctx context.Context, u types.PublicUser) error {
	data, err := json.Marshal(u)
	if err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache marshal: %w", err)
	}

	if err := c.client.Set(ctx, c.prefix+u.Id, data, c.ttl).Err(); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache set: %w", err)
	}

	atomic.AddUint64(&c.stats.Sets, 1)
	return nil
}

func (c *RedisProfileCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, c.prefix+id).Err(); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (c *RedisProfileCache) Stats() Stats {
	return Stats{
		Hits:   atomic.LoadUint64(&c.stats.Hits),
		Misses: atomic.LoadUint64(&c.stats.Misses),
		Sets:   atomic.LoadUint64(&c.stats.Sets),
		Errors: atomic.LoadUint64(&c.stats.Errors),
	}
}

func (c *RedisProfileCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// NopProfileCache never holds anything. It is used when no Redis address is
// configured.
type NopProfileCache struct{}

func (NopProfileCache) Get(context.Context, string) (types.PublicUser, bool, error) {
	return types.PublicUser{}, false, nil
}

func (NopProfileCache) Set(context.Context, types.PublicUser) error { return nil }

func (NopProfileCache) Delete(context.Context, string) error { return nil }
