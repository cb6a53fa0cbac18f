package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryCache 进程内缓存，存储编码后的字节，读取时解码出独立副本
type memoryCache struct {
	cache      *gocache.Cache
	serializer Serializer
	keyPrefix  string
	defaultTTL time.Duration
}

func newMemoryCache(cfg *Config) *memoryCache {
	return &memoryCache{
		cache:      gocache.New(cfg.DefaultTTL, cfg.Memory.CleanupInterval),
		serializer: cfg.Serializer,
		keyPrefix:  cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
	}
}

func (m *memoryCache) Get(_ context.Context, key string, value any) error {
	data, found := m.cache.Get(m.keyPrefix + key)
	if !found {
		return ErrCacheNotFound
	}
	raw, ok := data.([]byte)
	if !ok {
		return ErrCacheSerialization.WithMessage("unexpected memory entry type")
	}
	if err := m.serializer.Unmarshal(raw, value); err != nil {
		return ErrCacheSerialization.WithError(err)
	}
	return nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	raw, err := m.serializer.Marshal(value)
	if err != nil {
		return ErrCacheSerialization.WithError(err)
	}
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.cache.Set(m.keyPrefix+key, raw, ttl)
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.cache.Delete(m.keyPrefix + key)
	}
	return nil
}

func (m *memoryCache) Exists(_ context.Context, key string) (bool, error) {
	_, found := m.cache.Get(m.keyPrefix + key)
	return found, nil
}

func (m *memoryCache) Ping(context.Context) error { return nil }

func (m *memoryCache) Close() error {
	m.cache.Flush()
	return nil
}
