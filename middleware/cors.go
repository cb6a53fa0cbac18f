package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tokmz/reviewhub"
)

// CORSConfig CORS 中间件配置
type CORSConfig struct {
	// AllowOrigins 允许的源，支持 "*" 与 "https://*.example.com" 形式的通配符
	AllowOrigins []string

	AllowMethods  []string
	AllowHeaders  []string
	ExposeHeaders []string

	// AllowCredentials 为 true 时 AllowOrigins 不能为 ["*"]
	AllowCredentials bool

	// MaxAge 预检请求缓存时间
	MaxAge time.Duration
}

// DefaultCORSConfig 默认只放行本地前端开发服务器
func DefaultCORSConfig() *CORSConfig {
	return &CORSConfig{
		AllowOrigins: []string{"http://localhost:4321", "http://127.0.0.1:4321"},
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			AdminTokenHeader,
			"Traceparent",
		},
		ExposeHeaders:    []string{"Traceparent"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

// originMatcher 精确匹配 + 通配符匹配
type originMatcher struct {
	any       bool
	exact     map[string]struct{}
	wildcards [][2]string // prefix, suffix
}

func newOriginMatcher(origins []string) *originMatcher {
	m := &originMatcher{exact: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		switch {
		case o == "*":
			m.any = true
		case strings.Contains(o, "*"):
			prefix, suffix, _ := strings.Cut(o, "*")
			m.wildcards = append(m.wildcards, [2]string{prefix, suffix})
		default:
			m.exact[o] = struct{}{}
		}
	}
	return m
}

func (m *originMatcher) match(origin string) bool {
	if m.any {
		return true
	}
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, w := range m.wildcards {
		// 通配部分不能为空
		if len(origin) > len(w[0])+len(w[1]) && strings.HasPrefix(origin, w[0]) && strings.HasSuffix(origin, w[1]) {
			return true
		}
	}
	return false
}

// CORS 跨域中间件
// 不在白名单中的源不设置任何 CORS 响应头，由浏览器拒绝。
func CORS(cfgs ...*CORSConfig) reviewhub.HandlerFunc {
	cfg := DefaultCORSConfig()
	if len(cfgs) > 0 && cfgs[0] != nil {
		cfg = cfgs[0]
	}

	origins := newOriginMatcher(cfg.AllowOrigins)
	if cfg.AllowCredentials && origins.any {
		panic("reviewhub/middleware: CORS AllowCredentials cannot be used with AllowOrigins [\"*\"]")
	}

	allowMethods := strings.Join(cfg.AllowMethods, ", ")
	allowHeaders := strings.Join(cfg.AllowHeaders, ", ")
	exposeHeaders := strings.Join(cfg.ExposeHeaders, ", ")
	maxAge := strconv.Itoa(int(cfg.MaxAge.Seconds()))

	return func(c *reviewhub.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || !origins.match(origin) {
			c.Next()
			return
		}

		if origins.any {
			c.Header("Access-Control-Allow-Origin", "*")
		} else {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		if cfg.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		if exposeHeaders != "" {
			c.Header("Access-Control-Expose-Headers", exposeHeaders)
		}

		if c.Request().Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", allowMethods)
			c.Header("Access-Control-Allow-Headers", allowHeaders)
			c.Header("Access-Control-Max-Age", maxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
