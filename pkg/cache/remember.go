package cache

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"
)

// Group 防击穿加载器
// 同一 key 的并发未命中只执行一次加载函数，其余调用共享结果。
type Group struct {
	cache Cache
	sf    singleflight.Group
}

// NewGroup 创建加载器
func NewGroup(c Cache) *Group {
	return &Group{cache: c}
}

// Cache 底层缓存
func (g *Group) Cache() Cache {
	return g.cache
}

// Forget 丢弃进行中的加载，后续调用重新执行加载函数
func (g *Group) Forget(key string) {
	g.sf.Forget(key)
}

// Remember 读取缓存，未命中时加载并回填
// 缓存读取出错（非未命中）时直接加载，回填失败不影响返回结果。
func Remember[T any](ctx context.Context, g *Group, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	err := g.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}

	v, err, _ := g.sf.Do(key, func() (any, error) {
		val, err := load(ctx)
		if err != nil {
			return val, err
		}
		_ = g.cache.Set(ctx, key, val, ttl)
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	val, ok := v.(T)
	if !ok {
		var zero T
		return zero, ErrCacheSerialization.WithMessage("unexpected loader result type")
	}
	return val, nil
}

// IsNotFound 是否为缓存未命中
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCacheNotFound)
}
