package reviewhub

import (
	"io"
	"runtime"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version 服务版本号，构建时可通过 -ldflags 覆盖
var Version = "dev"

// logStartup 记录启动信息与路由表
func (e *Engine) logStartup(addr string) {
	e.log.Info("reviewhub starting",
		zap.String("version", Version),
		zap.String("mode", e.config.Mode),
		zap.String("go", runtime.Version()),
		zap.String("open", openURL(addr)),
	)
	for _, r := range e.engine.Routes() {
		e.log.Debug("route", zap.String("method", r.Method), zap.String("path", r.Path), zap.String("handler", r.Handler))
	}
}

// openURL 拼接本地访问地址
func openURL(addr string) string {
	switch {
	case strings.HasPrefix(addr, ":"):
		return "http://127.0.0.1" + addr
	case strings.Contains(addr, ":"):
		return "http://" + addr
	default:
		return "http://127.0.0.1:" + addr
	}
}

// silenceGin 静默 Gin 的默认输出，由 zap 统一记录
func silenceGin() {
	gin.DefaultWriter = io.Discard
	gin.DefaultErrorWriter = io.Discard
}
