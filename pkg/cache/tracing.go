package cache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "reviewhub/cache"

// tracedCache 为每次操作创建 client span，未命中不视为错误
type tracedCache struct {
	Cache
	system string
}

// NewTracing 包装缓存实例
func NewTracing(c Cache, system string) Cache {
	return &tracedCache{Cache: c, system: system}
}

func (t *tracedCache) trace(ctx context.Context, op string, keys []string, fn func(context.Context) error) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "cache."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cache.system", t.system),
			attribute.StringSlice("cache.keys", keys),
		),
	)
	defer span.End()

	err := fn(ctx)
	switch {
	case err == nil:
	case IsNotFound(err):
		span.SetAttributes(attribute.Bool("cache.hit", false))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (t *tracedCache) Get(ctx context.Context, key string, value any) error {
	return t.trace(ctx, "get", []string{key}, func(ctx context.Context) error {
		return t.Cache.Get(ctx, key, value)
	})
}

func (t *tracedCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return t.trace(ctx, "set", []string{key}, func(ctx context.Context) error {
		return t.Cache.Set(ctx, key, value, ttl)
	})
}

func (t *tracedCache) Delete(ctx context.Context, keys ...string) error {
	return t.trace(ctx, "delete", keys, func(ctx context.Context) error {
		return t.Cache.Delete(ctx, keys...)
	})
}

func (t *tracedCache) Exists(ctx context.Context, key string) (bool, error) {
	var found bool
	err := t.trace(ctx, "exists", []string{key}, func(ctx context.Context) error {
		var err error
		found, err = t.Cache.Exists(ctx, key)
		return err
	})
	return found, err
}
