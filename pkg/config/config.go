// Package config 基于 viper 加载配置：配置文件、默认值、环境变量与 .env，并可监听文件变更。
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 配置管理器
type Config struct {
	viper *viper.Viper
	mu    sync.RWMutex

	configFile  string
	configName  string
	configType  string
	configPaths []string

	defaults  map[string]any
	envPrefix string
	envBinds  map[string]string // key -> 环境变量名（不加前缀）
	dotenv    []string          // 预先加载的 .env 文件

	autoWatch bool
	watching  bool
	onChange  func()
	onError   func(error)
}

// New 创建配置管理器
func New(opts ...Option) *Config {
	c := &Config{viper: viper.New()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load 读取配置
// 顺序：.env 文件 → 默认值 → 配置文件 → 环境变量（优先级依次升高）。
// 未指定配置文件且按名称未找到时不视为错误。
func (c *Config) Load() error {
	for _, f := range c.dotenv {
		// .env 不覆盖已存在的环境变量，文件不存在时忽略
		if err := godotenv.Load(f); err != nil && !isNotExist(err) {
			return fmt.Errorf("%w: %s: %w", ErrConfigReadFailed, f, err)
		}
	}

	c.mu.Lock()
	for k, v := range c.defaults {
		c.viper.SetDefault(k, v)
	}
	if c.envPrefix != "" {
		c.viper.SetEnvPrefix(c.envPrefix)
	}
	c.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.viper.AutomaticEnv()
	for key, env := range c.envBinds {
		if err := c.viper.BindEnv(key, env); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("%w: bind %s: %w", ErrConfigReadFailed, env, err)
		}
	}

	hasFile := c.configFile != "" || c.configName != ""
	if c.configFile != "" {
		c.viper.SetConfigFile(c.configFile)
	} else if c.configName != "" {
		c.viper.SetConfigName(c.configName)
		if c.configType != "" {
			c.viper.SetConfigType(c.configType)
		}
		for _, p := range c.configPaths {
			c.viper.AddConfigPath(p)
		}
	}

	if hasFile {
		if err := c.viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			switch {
			case errors.As(err, &notFound) && c.configFile == "":
				// 按名称查找未命中，仅使用默认值与环境变量
			case errors.As(err, &notFound) || isNotExist(err):
				c.mu.Unlock()
				return fmt.Errorf("%w: %w", ErrConfigNotFound, err)
			default:
				c.mu.Unlock()
				return fmt.Errorf("%w: %w", ErrConfigReadFailed, err)
			}
		}
	}

	if c.autoWatch && c.viper.ConfigFileUsed() != "" {
		c.startWatch()
	}
	c.mu.Unlock()
	return nil
}

// GetString 获取字符串配置值
func (c *Config) GetString(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viper.GetString(key)
}

// GetInt 获取整数配置值
func (c *Config) GetInt(key string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viper.GetInt(key)
}

// GetBool 获取布尔配置值
func (c *Config) GetBool(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viper.GetBool(key)
}

// GetDuration 获取时间间隔配置值
func (c *Config) GetDuration(key string) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viper.GetDuration(key)
}

// GetStringSlice 获取字符串切片配置值
func (c *Config) GetStringSlice(key string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viper.GetStringSlice(key)
}

// Set 覆盖配置值
func (c *Config) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viper.Set(key, value)
}

// IsSet 配置键是否存在
func (c *Config) IsSet(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viper.IsSet(key)
}

// Unmarshal 反序列化全部配置
func (c *Config) Unmarshal(rawVal any) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viper.Unmarshal(rawVal)
}

// UnmarshalKey 反序列化指定 key
func (c *Config) UnmarshalKey(key string, rawVal any) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viper.UnmarshalKey(key, rawVal)
}

// ConfigFileUsed 实际读取的配置文件
func (c *Config) ConfigFileUsed() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viper.ConfigFileUsed()
}

// Close 停止监听
func (c *Config) Close() {
	c.StopWatch()
}
