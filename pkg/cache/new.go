package cache

// New 创建缓存实例
func New(cfg *Config) (Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Serializer == nil {
		cfg.Serializer = JSONSerializer{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		c   Cache
		err error
	)
	switch cfg.Driver {
	case DriverRedis:
		c, err = newRedisCache(cfg)
	default:
		c = newMemoryCache(cfg)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Tracing {
		c = NewTracing(c, string(cfg.Driver))
	}
	return c, nil
}
