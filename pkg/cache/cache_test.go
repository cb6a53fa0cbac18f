package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type review struct {
	ID    uint
	Title string
}

func newMemory(t *testing.T) Cache {
	t.Helper()
	c, err := New(DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// TestMemoryCache 测试内存缓存
func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := newMemory(t)

	t.Run("Set/Get", func(t *testing.T) {
		in := review{ID: 1, Title: "Dune"}
		require.NoError(t, c.Set(ctx, "review:1", in, time.Minute))

		var out review
		require.NoError(t, c.Get(ctx, "review:1", &out))
		assert.Equal(t, in, out)
	})

	t.Run("Miss", func(t *testing.T) {
		var out review
		err := c.Get(ctx, "review:404", &out)
		assert.True(t, IsNotFound(err))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "k1", "v1", 0))
		require.NoError(t, c.Set(ctx, "k2", "v2", 0))
		require.NoError(t, c.Delete(ctx, "k1", "k2"))

		ok, err := c.Exists(ctx, "k1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Expire", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "short", 1, 20*time.Millisecond))
		time.Sleep(50 * time.Millisecond)
		ok, _ := c.Exists(ctx, "short")
		assert.False(t, ok)
	})

	t.Run("Copies", func(t *testing.T) {
		in := []string{"a"}
		require.NoError(t, c.Set(ctx, "slice", in, 0))
		in[0] = "mutated"

		var out []string
		require.NoError(t, c.Get(ctx, "slice", &out))
		assert.Equal(t, []string{"a"}, out)
	})
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Driver = "memcached"
	assert.ErrorIs(t, cfg.Validate(), ErrCacheInvalidConfig)

	cfg = DefaultConfig()
	cfg.Driver = DriverRedis
	cfg.Redis.Addrs = nil
	assert.ErrorIs(t, cfg.Validate(), ErrCacheInvalidConfig)

	cfg = DefaultConfig()
	cfg.DefaultTTL = 0
	assert.ErrorIs(t, cfg.Validate(), ErrCacheInvalidConfig)
}

func TestRememberCollapsesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	g := NewGroup(newMemory(t))

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (review, error) {
		calls.Add(1)
		<-release
		return review{ID: 7, Title: "Alien"}, nil
	}

	const n = 20
	var wg sync.WaitGroup
	results := make([]review, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := Remember(ctx, g, "review:7", time.Minute, load)
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "Alien", r.Title)
	}

	// 已回填，不再加载
	r, err := Remember(ctx, g, "review:7", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, uint(7), r.ID)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRememberDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	g := NewGroup(newMemory(t))
	boom := errors.New("db down")

	_, err := Remember(ctx, g, "k", time.Minute, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	v, err := Remember(ctx, g, "k", time.Minute, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestTracingWrapper(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cfg := DefaultConfig()
	cfg.Tracing = true
	c, err := New(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", 1, 0))
	var v int
	require.NoError(t, c.Get(ctx, "a", &v))
	assert.True(t, IsNotFound(c.Get(ctx, "missing", &v)))

	ended := rec.Ended()
	require.Len(t, ended, 3)
	assert.Equal(t, "cache.set", ended[0].Name())
	assert.Equal(t, "cache.get", ended[1].Name())

	_, isRedis := RedisClient(c)
	assert.False(t, isRedis)
}
