package config

// Option 配置选项函数
type Option func(*Config)

// WithConfigFile 指定配置文件完整路径，文件不存在时 Load 返回 ErrConfigNotFound
func WithConfigFile(path string) Option {
	return func(c *Config) {
		c.configFile = path
	}
}

// WithConfigName 按名称查找配置文件（不含扩展名）
func WithConfigName(name string) Option {
	return func(c *Config) {
		c.configName = name
	}
}

// WithConfigType 配置文件类型（yaml, json, toml）
func WithConfigType(typ string) Option {
	return func(c *Config) {
		c.configType = typ
	}
}

// WithConfigPaths 配置文件搜索路径
func WithConfigPaths(paths ...string) Option {
	return func(c *Config) {
		c.configPaths = paths
	}
}

// WithDefaults 默认值
func WithDefaults(defaults map[string]any) Option {
	return func(c *Config) {
		c.defaults = defaults
	}
}

// WithEnvPrefix 环境变量前缀，key 中的 "." 替换为 "_"
func WithEnvPrefix(prefix string) Option {
	return func(c *Config) {
		c.envPrefix = prefix
	}
}

// WithEnvBinding 将 key 绑定到指定环境变量（不加前缀）
func WithEnvBinding(key, env string) Option {
	return func(c *Config) {
		if c.envBinds == nil {
			c.envBinds = make(map[string]string)
		}
		c.envBinds[key] = env
	}
}

// WithDotenv Load 前加载的 .env 文件，不存在时忽略
func WithDotenv(files ...string) Option {
	return func(c *Config) {
		c.dotenv = files
	}
}

// WithAutoWatch Load 后自动监听配置文件
func WithAutoWatch(watch bool) Option {
	return func(c *Config) {
		c.autoWatch = watch
	}
}

// WithOnChange 配置文件变更回调
func WithOnChange(fn func()) Option {
	return func(c *Config) {
		c.onChange = fn
	}
}

// WithOnError 监听错误回调
func WithOnError(fn func(error)) Option {
	return func(c *Config) {
		c.onError = fn
	}
}
