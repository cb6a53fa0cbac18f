package ws

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tokmz/reviewhub/pkg/logger"
)

// MalformedPolicy 非法消息处理策略
type MalformedPolicy string

const (
	// PolicyClose 关闭会话，等同于客户端断开（默认）
	PolicyClose MalformedPolicy = "close"
	// PolicyDrop 丢弃该条消息，会话继续
	PolicyDrop MalformedPolicy = "drop"
)

// ParseMalformedPolicy 解析策略名称，空字符串返回 PolicyClose
func ParseMalformedPolicy(s string) (MalformedPolicy, error) {
	switch MalformedPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyClose:
		return PolicyClose, nil
	case PolicyDrop:
		return PolicyDrop, nil
	default:
		return "", fmt.Errorf("%w: unknown malformed policy %q", ErrInvalidConfig, s)
	}
}

// DefaultRoom 未指定 page 时的房间
const DefaultRoom = "/"

// Config WebSocket 中继配置
type Config struct {
	// 连接配置
	MaxConnections   int           // 最大连接数
	HandshakeTimeout time.Duration // 握手超时
	MaxMessageSize   int64         // 单条消息最大字节数

	// 心跳配置
	HeartbeatInterval time.Duration // ping 间隔
	HeartbeatTimeout  time.Duration // 读超时（收到 pong 后顺延）
	WriteWait         time.Duration // 单次写超时

	// 投递配置
	SendQueueSize    int           // 每个连接的发送队列长度
	SendTimeout      time.Duration // 队列满时的等待上限，0 表示立即失败
	BroadcastWorkers int           // 单次广播的并发投递数，<=1 为顺序投递

	// 会话配置
	MalformedPolicy MalformedPolicy

	// 事件总线
	EventWorkers   int
	EventQueueSize int

	// 跨实例总线（可选）
	Bus        Bus
	InstanceID string

	Upgrader UpgraderConfig

	Metrics Metrics
	Logger  logger.Logger
}

// UpgraderConfig Upgrader 配置
type UpgraderConfig struct {
	ReadBufferSize    int
	WriteBufferSize   int
	EnableCompression bool
	AllowedOrigins    []string                 // Origin 白名单，空则同源检查
	CheckOrigin       func(*http.Request) bool // 优先于白名单
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		MaxConnections:    10000,
		HandshakeTimeout:  10 * time.Second,
		MaxMessageSize:    64 * 1024,
		HeartbeatInterval: 30 * time.Second,
		HeartbeatTimeout:  90 * time.Second,
		WriteWait:         10 * time.Second,
		SendQueueSize:     256,
		SendTimeout:       0,
		BroadcastWorkers:  16,
		MalformedPolicy:   PolicyClose,
		EventWorkers:      4,
		EventQueueSize:    1024,
		Upgrader: UpgraderConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	switch {
	case c.MaxConnections <= 0:
		return fmt.Errorf("%w: MaxConnections must be positive, got %d", ErrInvalidConfig, c.MaxConnections)
	case c.MaxMessageSize <= 0:
		return fmt.Errorf("%w: MaxMessageSize must be positive, got %d", ErrInvalidConfig, c.MaxMessageSize)
	case c.HeartbeatInterval <= 0:
		return fmt.Errorf("%w: HeartbeatInterval must be positive, got %v", ErrInvalidConfig, c.HeartbeatInterval)
	case c.HeartbeatTimeout <= c.HeartbeatInterval:
		return fmt.Errorf("%w: HeartbeatTimeout (%v) must be greater than HeartbeatInterval (%v)",
			ErrInvalidConfig, c.HeartbeatTimeout, c.HeartbeatInterval)
	case c.WriteWait <= 0:
		return fmt.Errorf("%w: WriteWait must be positive, got %v", ErrInvalidConfig, c.WriteWait)
	case c.SendQueueSize <= 0:
		return fmt.Errorf("%w: SendQueueSize must be positive, got %d", ErrInvalidConfig, c.SendQueueSize)
	case c.SendTimeout < 0:
		return fmt.Errorf("%w: SendTimeout must not be negative, got %v", ErrInvalidConfig, c.SendTimeout)
	case c.EventWorkers <= 0 || c.EventQueueSize <= 0:
		return fmt.Errorf("%w: event bus needs positive workers and queue size", ErrInvalidConfig)
	case c.Upgrader.ReadBufferSize <= 0 || c.Upgrader.WriteBufferSize <= 0:
		return fmt.Errorf("%w: upgrader buffer sizes must be positive", ErrInvalidConfig)
	}
	if _, err := ParseMalformedPolicy(string(c.MalformedPolicy)); err != nil {
		return err
	}
	return nil
}

// Option 配置选项
type Option func(*Config)

// WithMaxConnections 设置最大连接数
func WithMaxConnections(n int) Option {
	return func(c *Config) {
		c.MaxConnections = n
	}
}

// WithHeartbeat 设置心跳间隔与超时
func WithHeartbeat(interval, timeout time.Duration) Option {
	return func(c *Config) {
		c.HeartbeatInterval = interval
		c.HeartbeatTimeout = timeout
	}
}

// WithWriteWait 设置写超时
func WithWriteWait(d time.Duration) Option {
	return func(c *Config) {
		c.WriteWait = d
	}
}

// WithMessageSizeLimit 设置消息大小限制
func WithMessageSizeLimit(size int64) Option {
	return func(c *Config) {
		c.MaxMessageSize = size
	}
}

// WithSendQueueSize 设置发送队列长度
func WithSendQueueSize(size int) Option {
	return func(c *Config) {
		c.SendQueueSize = size
	}
}

// WithSendTimeout 设置单个接收方的投递等待上限
func WithSendTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.SendTimeout = d
	}
}

// WithBroadcastWorkers 设置单次广播的并发投递数
func WithBroadcastWorkers(n int) Option {
	return func(c *Config) {
		c.BroadcastWorkers = n
	}
}

// WithMalformedPolicy 设置非法消息处理策略
func WithMalformedPolicy(p MalformedPolicy) Option {
	return func(c *Config) {
		c.MalformedPolicy = p
	}
}

// WithEventWorkers 设置事件总线 worker 数与队列长度
func WithEventWorkers(workers, queueSize int) Option {
	return func(c *Config) {
		c.EventWorkers = workers
		c.EventQueueSize = queueSize
	}
}

// WithBus 启用跨实例总线
func WithBus(bus Bus) Option {
	return func(c *Config) {
		c.Bus = bus
	}
}

// WithInstanceID 设置实例 ID（默认随机 uuid）
func WithInstanceID(id string) Option {
	return func(c *Config) {
		c.InstanceID = id
	}
}

// WithCheckOrigin 设置 Origin 检查函数
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(c *Config) {
		c.Upgrader.CheckOrigin = fn
	}
}

// WithCheckOriginWhitelist 设置 Origin 白名单
func WithCheckOriginWhitelist(origins []string) Option {
	return func(c *Config) {
		c.Upgrader.AllowedOrigins = origins
	}
}

// WithAllowAllOrigins 允许所有来源（仅用于开发环境）
func WithAllowAllOrigins() Option {
	return func(c *Config) {
		c.Upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
}

// WithEnableCompression 启用 permessage-deflate
func WithEnableCompression(enable bool) Option {
	return func(c *Config) {
		c.Upgrader.EnableCompression = enable
	}
}

// WithMetrics 设置监控
func WithMetrics(m Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// newUpgrader 根据配置构建 gorilla Upgrader
func newUpgrader(cfg UpgraderConfig, handshakeTimeout time.Duration) websocket.Upgrader {
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		if len(cfg.AllowedOrigins) > 0 {
			checkOrigin = whitelistChecker(cfg.AllowedOrigins)
		} else {
			checkOrigin = sameOrigin
		}
	}
	return websocket.Upgrader{
		HandshakeTimeout:  handshakeTimeout,
		ReadBufferSize:    cfg.ReadBufferSize,
		WriteBufferSize:   cfg.WriteBufferSize,
		EnableCompression: cfg.EnableCompression,
		CheckOrigin:       checkOrigin,
	}
}

// sameOrigin 同源检查，无 Origin 的非浏览器客户端放行
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// whitelistChecker 白名单检查，"*" 放行所有来源
func whitelistChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return false
		}
		_, ok := allowed[origin]
		return ok
	}
}
