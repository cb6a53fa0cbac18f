package config

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
)

// startWatch 调用方必须持有 mu
func (c *Config) startWatch() {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		c.mu.RLock()
		watching := c.watching
		onChange := c.onChange
		c.mu.RUnlock()

		if watching && onChange != nil {
			onChange()
		}
	})
	c.viper.WatchConfig()
	c.watching = true
}

// StartWatch 开始监听配置文件，重复调用无副作用
func (c *Config) StartWatch() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watching {
		return nil
	}
	if c.viper.ConfigFileUsed() == "" {
		return fmt.Errorf("%w: no config file loaded", ErrConfigNotFound)
	}
	c.startWatch()
	return nil
}

// StopWatch 停止触发回调
// viper 不提供停止底层 fsnotify watcher 的方法，这里只屏蔽回调。
func (c *Config) StopWatch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watching = false
}

// IsWatching 是否正在监听
func (c *Config) IsWatching() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.watching
}

func (c *Config) reportError(err error) {
	c.mu.RLock()
	onError := c.onError
	c.mu.RUnlock()
	if onError != nil {
		onError(err)
		return
	}
	fmt.Fprintf(os.Stderr, "[config] %v\n", err)
}
