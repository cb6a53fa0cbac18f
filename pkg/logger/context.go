package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

// WithTraceID 将 TraceID 写入 context，供 *Context 日志方法提取
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFrom 读取 context 中的 TraceID，优先使用 OpenTelemetry SpanContext
func TraceIDFrom(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// contextFields 提取 trace_id / span_id 并追加调用方字段
func contextFields(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return fields
	}
	out := make([]zap.Field, 0, len(fields)+2)
	if id := TraceIDFrom(ctx); id != "" {
		out = append(out, zap.String("trace_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasSpanID() {
		out = append(out, zap.String("span_id", sc.SpanID().String()))
	}
	return append(out, fields...)
}
