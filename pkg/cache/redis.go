package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCache Redis 缓存，支持单机、集群与哨兵
type redisCache struct {
	client     redis.UniversalClient
	serializer Serializer
	keyPrefix  string
	defaultTTL time.Duration
}

func newRedisCache(cfg *Config) (*redisCache, error) {
	rc := cfg.Redis
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        rc.Addrs,
		MasterName:   rc.MasterName,
		Username:     rc.Username,
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), rc.DialTimeout+time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, ErrCacheConnection.WithError(err)
	}

	return &redisCache{
		client:     client,
		serializer: cfg.Serializer,
		keyPrefix:  cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

// Client 底层客户端，供跨实例总线等组件复用连接
func (r *redisCache) Client() redis.UniversalClient {
	return r.client
}

func (r *redisCache) Get(ctx context.Context, key string, value any) error {
	raw, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheNotFound
	}
	if err != nil {
		return ErrCacheConnection.WithError(err)
	}
	if err := r.serializer.Unmarshal(raw, value); err != nil {
		return ErrCacheSerialization.WithError(err)
	}
	return nil
}

func (r *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := r.serializer.Marshal(value)
	if err != nil {
		return ErrCacheSerialization.WithError(err)
	}
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	if err := r.client.Set(ctx, r.keyPrefix+key, raw, ttl).Err(); err != nil {
		return ErrCacheConnection.WithError(err)
	}
	return nil
}

func (r *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.keyPrefix + k
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return ErrCacheConnection.WithError(err)
	}
	return nil
}

func (r *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.keyPrefix+key).Result()
	if err != nil {
		return false, ErrCacheConnection.WithError(err)
	}
	return n > 0, nil
}

func (r *redisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCache) Close() error {
	return r.client.Close()
}

// RedisClient 返回 Redis 缓存的底层客户端，其他驱动返回 false
func RedisClient(c Cache) (redis.UniversalClient, bool) {
	if t, ok := c.(*tracedCache); ok {
		c = t.Cache
	}
	rc, ok := c.(*redisCache)
	if !ok {
		return nil, false
	}
	return rc.client, true
}
