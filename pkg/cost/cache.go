package cost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/paiban/fleetplan/pkg/logger"
	"github.com/paiban/fleetplan/pkg/model"
	redis "github.com/redis/go-redis/v9"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("缓存未命中")

// Cache 键值缓存
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cached 带缓存的行驶成本提供者
// 缓存读写失败时直接回退到下游提供者
type Cached struct {
	next   Provider
	cache  Cache
	ttl    time.Duration
	prefix string
}

// NewCached 创建带缓存的提供者
func NewCached(next Provider, cache Cache, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cached{next: next, cache: cache, ttl: ttl, prefix: "fleetplan:cost:"}
}

// Between 实现 Provider
func (c *Cached) Between(ctx context.Context, from, to model.Location) (Estimate, error) {
	key := c.key(from, to)

	if raw, err := c.cache.Get(ctx, key); err == nil {
		var est Estimate
		if err := json.Unmarshal(raw, &est); err == nil {
			return est, nil
		}
	} else if !errors.Is(err, ErrCacheMiss) {
		logger.Debug().Err(err).Str("key", key).Msg("读取成本缓存失败")
	}

	est, err := c.next.Between(ctx, from, to)
	if err != nil {
		return Estimate{}, err
	}

	if raw, err := json.Marshal(est); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
			logger.Debug().Err(err).Str("key", key).Msg("写入成本缓存失败")
		}
	}
	return est, nil
}

func (c *Cached) key(from, to model.Location) string {
	return fmt.Sprintf("%s%s->%s", c.prefix, from.Key(), to.Key())
}

// RedisCache 基于 Redis 的缓存
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache 创建 Redis 缓存
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

// NewRedisClient 根据地址创建 Redis 客户端
func NewRedisClient(addr, password string, db, poolSize int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})
}

// Get 实现 Cache
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return raw, err
}

// Set 实现 Cache
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

// Ping 检查 Redis 连通性
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
