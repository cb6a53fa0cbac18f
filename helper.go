package reviewhub

import "github.com/tokmz/reviewhub/pkg/logger"

// ContextTraceIDKey 链路追踪 trace_id 键
const ContextTraceIDKey = "trace_id"

// GetContextTraceID 获取 trace_id
// 优先使用中间件写入的值，其次读取请求 context 中的 OpenTelemetry SpanContext
func GetContextTraceID(ctx *Context) string {
	if id := ctx.GetString(ContextTraceIDKey); id != "" {
		return id
	}
	return logger.TraceIDFrom(ctx.Request().Context())
}

// SetContextTraceID 设置 trace_id
func SetContextTraceID(ctx *Context, traceID string) {
	ctx.Set(ContextTraceIDKey, traceID)
}

// ContextResponseModeKey 响应格式键
const ContextResponseModeKey = "response_mode"

// WithResponseMode 中间件，为当前路由组设置响应格式
func WithResponseMode(mode ResponseMode) HandlerFunc {
	return func(c *Context) {
		c.Set(ContextResponseModeKey, mode)
		c.Next()
	}
}

// GetResponseMode 当前请求的响应格式，未设置时为 ModeEnvelope
func GetResponseMode(ctx *Context) ResponseMode {
	if v, ok := ctx.Get(ContextResponseModeKey); ok {
		if mode, ok := v.(ResponseMode); ok {
			return mode
		}
	}
	return ModeEnvelope
}
