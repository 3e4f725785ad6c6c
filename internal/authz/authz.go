// Package authz 在数据库权限查询之前加一层 redis 缓存。
package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Gate 是权威的权限来源，通常由 repository 实现
type Gate interface {
	CanManage(ctx context.Context, actorID, activityID int64) (bool, error)
}

// Cache 只暴露缓存需要的两个操作，未命中时 Get 返回 redis.Nil
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// CachedGate 缓存 CanManage 的结果。缓存不可用时直接查询 Gate，不影响请求
type CachedGate struct {
	gate    Gate
	cache   Cache
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

func NewCachedGate(gate Gate, cache Cache, ttl, timeout time.Duration, logger *zap.Logger) *CachedGate {
	return &CachedGate{
		gate:    gate,
		cache:   cache,
		ttl:     ttl,
		timeout: timeout,
		logger:  logger,
	}
}

func cacheKey(actorID, activityID int64) string {
	return fmt.Sprintf("authz_can_manage_%d_%d", actorID, activityID)
}

func (g *CachedGate) CanManage(ctx context.Context, actorID, activityID int64) (bool, error) {
	if g.ttl <= 0 {
		return g.gate.CanManage(ctx, actorID, activityID)
	}

	key := cacheKey(actorID, activityID)

	cacheCtx, cancel := context.WithTimeout(ctx, g.timeout)
	cached, err := g.cache.Get(cacheCtx, key)
	cancel()
	switch {
	case err == nil:
		return cached == "1", nil
	case errors.Is(err, redis.Nil):
	default:
		g.logger.Warn("读取权限缓存失败", zap.String("key", key), zap.Error(err))
	}

	ok, err := g.gate.CanManage(ctx, actorID, activityID)
	if err != nil {
		return false, err
	}

	value := "0"
	if ok {
		value = "1"
	}

	cacheCtx, cancel = context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := g.cache.Set(cacheCtx, key, value, g.ttl); err != nil {
		g.logger.Warn("写入权限缓存失败", zap.String("key", key), zap.Error(err))
	}

	return ok, nil
}
