package cache

import (
	"net/http"

	"github.com/tokmz/reviewhub/pkg/errors"
)

// 缓存错误码 3xxx
var (
	ErrCacheNotFound      = errors.New(3001, "cache key not found", http.StatusNotFound)
	ErrCacheConnection    = errors.New(3003, "cache connection failed")
	ErrCacheSerialization = errors.New(3004, "cache serialization failed")
	ErrCacheInvalidConfig = errors.New(3005, "cache invalid config")
)
