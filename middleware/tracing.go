package middleware

import (
	"fmt"

	"github.com/tokmz/reviewhub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig 链路追踪中间件配置
type TracingConfig struct {
	// TracerName 默认 "reviewhub.http"
	TracerName string

	// ExcludePaths 不追踪的路径
	ExcludePaths []string

	// Filter 返回 false 时跳过
	Filter func(c *reviewhub.Context) bool
}

// Tracing HTTP Server Span 中间件
// 提取上游 TraceContext，创建 Server Span，并把 TraceID 写入 Context 供响应与日志使用。
func Tracing(cfgs ...*TracingConfig) reviewhub.HandlerFunc {
	cfg := &TracingConfig{}
	if len(cfgs) > 0 && cfgs[0] != nil {
		cfg = cfgs[0]
	}
	if cfg.TracerName == "" {
		cfg.TracerName = "reviewhub.http"
	}

	skip := make(map[string]bool, len(cfg.ExcludePaths))
	for _, path := range cfg.ExcludePaths {
		skip[path] = true
	}

	return func(c *reviewhub.Context) {
		req := c.Request()
		if skip[req.URL.Path] || (cfg.Filter != nil && !cfg.Filter(c)) {
			c.Next()
			return
		}

		// 每次请求获取 tracer，Provider 可能晚于路由注册初始化
		tracer := otel.Tracer(cfg.TracerName)
		propagator := otel.GetTextMapPropagator()
		ctx := propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))

		route := c.FullPath()
		spanName := req.Method + " " + route
		if route == "" {
			spanName = req.Method + " " + req.URL.Path
		}
		attrs := []attribute.KeyValue{
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLPath(req.URL.Path),
			semconv.ServerAddress(req.Host),
			semconv.UserAgentOriginalKey.String(req.UserAgent()),
			semconv.ClientAddress(c.ClientIP()),
		}
		if route != "" {
			attrs = append(attrs, semconv.HTTPRouteKey.String(route))
		}

		ctx, span := tracer.Start(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		if sc := span.SpanContext(); sc.HasTraceID() {
			reviewhub.SetContextTraceID(c, sc.TraceID().String())
		}
		c.SetRequestContext(ctx)
		propagator.Inject(ctx, propagation.HeaderCarrier(c.Writer().Header()))

		c.Next()

		status := c.Writer().Status()
		span.SetAttributes(semconv.HTTPResponseStatusCodeKey.Int(status))
		for _, err := range c.Gin().Errors {
			span.RecordError(err.Err)
		}
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}
	}
}
