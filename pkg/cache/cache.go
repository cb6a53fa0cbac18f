// Package cache 提供内存与 Redis 两种缓存实现，以及防击穿的 Remember。
package cache

import (
	"context"
	"time"
)

// Cache 缓存接口
// 值经 Serializer 编码后存储，Get 未命中时返回 ErrCacheNotFound。
type Cache interface {
	Get(ctx context.Context, key string, value any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

// Serializer 序列化接口
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}
