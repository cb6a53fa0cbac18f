package cache

import (
	"fmt"
	"time"
)

// DriverType 驱动类型
type DriverType string

const (
	DriverRedis  DriverType = "redis"
	DriverMemory DriverType = "memory"
)

// Config 缓存配置
type Config struct {
	Driver     DriverType    `mapstructure:"driver"`
	KeyPrefix  string        `mapstructure:"key_prefix"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	Tracing    bool          `mapstructure:"tracing"` // 为每次操作创建 span

	Redis  RedisConfig  `mapstructure:"redis"`
	Memory MemoryConfig `mapstructure:"memory"`

	Serializer Serializer `mapstructure:"-"`
}

// RedisConfig Redis 配置
// Addrs 多于一个时为集群模式，设置 MasterName 时为哨兵模式。
type RedisConfig struct {
	Addrs        []string      `mapstructure:"addrs"`
	MasterName   string        `mapstructure:"master_name"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// MemoryConfig 内存缓存配置
type MemoryConfig struct {
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// DefaultConfig 默认配置（内存缓存）
func DefaultConfig() *Config {
	return &Config{
		Driver:     DriverMemory,
		KeyPrefix:  "reviewhub:",
		DefaultTTL: 10 * time.Minute,
		Redis: RedisConfig{
			Addrs:        []string{"localhost:6379"},
			PoolSize:     50,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Memory: MemoryConfig{CleanupInterval: 5 * time.Minute},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverMemory:
	case DriverRedis:
		if len(c.Redis.Addrs) == 0 {
			return ErrCacheInvalidConfig.WithMessage("redis addrs are required")
		}
	default:
		return ErrCacheInvalidConfig.WithMessage(fmt.Sprintf("unknown driver %q", c.Driver))
	}
	if c.DefaultTTL <= 0 {
		return ErrCacheInvalidConfig.WithMessage("default ttl must be positive")
	}
	return nil
}
