package middleware

import (
	"sync"
	"time"

	"github.com/tokmz/reviewhub"
	apperrors "github.com/tokmz/reviewhub/pkg/errors"
	"github.com/tokmz/reviewhub/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiterConfig 限流中间件配置
type RateLimiterConfig struct {
	// RequestsPerSecond 每个 key 每秒允许的请求数
	RequestsPerSecond float64

	// Burst 突发容量
	Burst int

	// KeyFunc 限流 key，默认客户端 IP
	KeyFunc func(c *reviewhub.Context) string

	// ExcludePaths 不限流的路径
	ExcludePaths []string

	// SkipFunc 返回 true 时跳过
	SkipFunc func(c *reviewhub.Context) bool

	// CleanupInterval 清理间隔，IdleTimeout 无访问的 limiter 被删除
	CleanupInterval time.Duration
	IdleTimeout     time.Duration

	Logger logger.Logger
}

func (c *RateLimiterConfig) setDefaults() {
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 20
	}
	if c.Burst <= 0 {
		c.Burst = int(c.RequestsPerSecond) * 2
	}
	if c.KeyFunc == nil {
		c.KeyFunc = func(c *reviewhub.Context) string { return c.ClientIP() }
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 10 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = logger.NewNop()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 按 key 的令牌桶限流
type RateLimiter struct {
	cfg      RateLimiterConfig
	skip     map[string]bool
	mu       sync.Mutex
	visitors map[string]*visitor
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter 创建限流器并启动后台清理，使用完毕后调用 Stop
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	cfg.setDefaults()
	rl := &RateLimiter{
		cfg:      cfg,
		skip:     make(map[string]bool, len(cfg.ExcludePaths)),
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
	}
	for _, p := range cfg.ExcludePaths {
		rl.skip[p] = true
	}
	go rl.cleanupLoop()
	return rl
}

// Allow 消耗 key 的一个令牌
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiter(key, time.Now()).Allow()
}

func (rl *RateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Len 当前跟踪的 key 数
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			rl.cleanup(now)
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.cfg.IdleTimeout {
			delete(rl.visitors, key)
		}
	}
}

// Stop 停止后台清理
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Handler 返回中间件，超限时响应 429
func (rl *RateLimiter) Handler() reviewhub.HandlerFunc {
	return func(c *reviewhub.Context) {
		if rl.skip[c.Request().URL.Path] || (rl.cfg.SkipFunc != nil && rl.cfg.SkipFunc(c)) {
			c.Next()
			return
		}

		key := rl.cfg.KeyFunc(c)
		if !rl.Allow(key) {
			rl.cfg.Logger.WarnContext(c.RequestContext(), "rate limit exceeded",
				zap.String("key", key),
				zap.String("path", c.Request().URL.Path),
			)
			c.Header("Retry-After", "1")
			c.AbortWithError(apperrors.ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
