package reviewhub

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tokmz/reviewhub/pkg/logger"
)

// ServerConfig 服务器配置
type ServerConfig struct {
	// Addr 监听地址，默认 ":8000"
	Addr string

	// ReadTimeout 读取超时
	ReadTimeout time.Duration

	// WriteTimeout 写入超时
	// websocket 连接在升级后由 Hub 自行管理写超时，不受此值影响
	WriteTimeout time.Duration

	// IdleTimeout 空闲超时
	IdleTimeout time.Duration

	// MaxHeaderBytes 最大请求头字节数
	MaxHeaderBytes int
}

// ShutdownConfig 关机配置
type ShutdownConfig struct {
	// Timeout 关机超时时间，默认 10 秒
	Timeout time.Duration

	// BeforeShutdown 关闭 HTTP 服务前回调，用于关闭 websocket Hub 等长连接
	BeforeShutdown func(ctx context.Context)

	// AfterShutdown 关机后回调
	AfterShutdown func()
}

// Config 应用配置
type Config struct {
	// Mode 运行模式：debug, release, test
	Mode string

	// Server 服务器配置
	Server ServerConfig

	// Shutdown 关机配置
	Shutdown ShutdownConfig

	// TrustedProxies 信任的代理 IP
	TrustedProxies []string

	// Logger 框架日志，nil 时丢弃
	Logger logger.Logger
}

// Option 配置选项函数
type Option func(*Config)

// defaultConfig 返回默认配置
func defaultConfig() *Config {
	return &Config{
		Mode: gin.ReleaseMode,
		Server: ServerConfig{
			Addr:           ":8000",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 20, // 1MB
		},
		Shutdown: ShutdownConfig{
			Timeout: 10 * time.Second,
		},
	}
}

// WithMode 设置运行模式
func WithMode(mode string) Option {
	return func(c *Config) {
		c.Mode = mode
	}
}

// WithAddr 设置监听地址
func WithAddr(addr string) Option {
	return func(c *Config) {
		c.Server.Addr = addr
	}
}

// WithReadTimeout 设置读取超时
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Server.ReadTimeout = timeout
	}
}

// WithWriteTimeout 设置写入超时
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Server.WriteTimeout = timeout
	}
}

// WithIdleTimeout 设置空闲超时
func WithIdleTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Server.IdleTimeout = timeout
	}
}

// WithShutdownTimeout 设置关机超时时间
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Shutdown.Timeout = timeout
	}
}

// WithBeforeShutdown 设置关机前回调，ctx 携带关机超时
func WithBeforeShutdown(fn func(ctx context.Context)) Option {
	return func(c *Config) {
		c.Shutdown.BeforeShutdown = fn
	}
}

// WithAfterShutdown 设置关机后回调
func WithAfterShutdown(fn func()) Option {
	return func(c *Config) {
		c.Shutdown.AfterShutdown = fn
	}
}

// WithTrustedProxies 设置信任的代理
func WithTrustedProxies(proxies ...string) Option {
	return func(c *Config) {
		c.TrustedProxies = proxies
	}
}

// WithLogger 设置框架日志
func WithLogger(l logger.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}
