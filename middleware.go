package reviewhub

import (
	"errors"
	"net"
	"os"
	"runtime/debug"
	"strings"
	"time"

	apperrors "github.com/tokmz/reviewhub/pkg/errors"
	"github.com/tokmz/reviewhub/pkg/logger"
	"go.uber.org/zap"
)

// LoggerConfig 访问日志配置
type LoggerConfig struct {
	// SkipFunc 返回 true 时不记录
	SkipFunc func(c *Context) bool

	// ExcludePaths 排除的路径
	ExcludePaths []string
}

// Logger 访问日志中间件
// 记录方法、路由、状态码、耗时与客户端 IP，按状态码选择级别
func Logger(log logger.Logger, cfgs ...*LoggerConfig) HandlerFunc {
	cfg := &LoggerConfig{}
	if len(cfgs) > 0 && cfgs[0] != nil {
		cfg = cfgs[0]
	}

	skip := make(map[string]bool, len(cfg.ExcludePaths))
	for _, path := range cfg.ExcludePaths {
		skip[path] = true
	}

	return func(c *Context) {
		if skip[c.Request().URL.Path] || (cfg.SkipFunc != nil && cfg.SkipFunc(c)) {
			c.Next()
			return
		}

		start := time.Now()
		path := c.Request().URL.Path
		method := c.Request().Method

		c.Next()

		status := c.Writer().Status()
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if errs := c.ctx.Errors; len(errs) > 0 {
			fields = append(fields, zap.String("error", errs.String()))
		}

		ctx := c.RequestContext()
		switch {
		case status >= 500:
			log.ErrorContext(ctx, "request", fields...)
		case status >= 400:
			log.WarnContext(ctx, "request", fields...)
		default:
			log.InfoContext(ctx, "request", fields...)
		}
	}
}

// Recovery panic 恢复中间件
// panic 时以统一响应格式返回 500 并记录堆栈
func Recovery(log logger.Logger) HandlerFunc {
	if log == nil {
		log = logger.NewNop()
	}
	return func(c *Context) {
		defer func() {
			if err := recover(); err != nil {
				if isBrokenPipe(err) {
					log.Warn("broken pipe",
						zap.Any("error", err),
						zap.String("path", c.Request().URL.Path),
					)
					c.Abort()
					return
				}

				log.ErrorContext(c.RequestContext(), "panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request().Method),
					zap.String("path", c.Request().URL.Path),
					zap.String("client_ip", c.ClientIP()),
					zap.String("stack", string(debug.Stack())),
				)
				c.AbortWithError(apperrors.ErrServer)
			}
		}()
		c.Next()
	}
}

// isBrokenPipe 客户端已断开连接
func isBrokenPipe(v any) bool {
	err, ok := v.(error)
	if !ok {
		return false
	}
	var ne *net.OpError
	if !errors.As(err, &ne) {
		return false
	}
	var se *os.SyscallError
	if !errors.As(ne.Err, &se) {
		return false
	}
	msg := strings.ToLower(se.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
