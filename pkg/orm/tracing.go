package orm

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const tracerName = "reviewhub/orm"

// TracingPlugin 为每条 SQL 创建 client span
// 不记录 SQL 文本，只记录操作、表名与影响行数。
type TracingPlugin struct {
	system string
}

// NewTracingPlugin 创建追踪插件，system 为 db.system 属性值
func NewTracingPlugin(system string) *TracingPlugin {
	return &TracingPlugin{system: system}
}

func (p *TracingPlugin) Name() string {
	return "reviewhub:tracing"
}

// Initialize 在 create/query/update/delete/row/raw 前后注册回调
func (p *TracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	type registrar struct {
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}
	regs := []registrar{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, r := range regs {
		if err := r.before("tracing:before_"+r.op, p.before(r.op)); err != nil {
			return fmt.Errorf("register %s before: %w", r.op, err)
		}
		if err := r.after("tracing:after_"+r.op, p.after); err != nil {
			return fmt.Errorf("register %s after: %w", r.op, err)
		}
	}
	return nil
}

func (p *TracingPlugin) before(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		// 每次取 tracer，Provider 晚于 Open 注册时也能生效
		ctx, _ = otel.Tracer(tracerName).Start(ctx, "gorm."+op,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("db.system", p.system),
				attribute.String("db.operation", op),
			),
		)
		db.Statement.Context = ctx
	}
}

func (p *TracingPlugin) after(db *gorm.DB) {
	span := trace.SpanFromContext(db.Statement.Context)
	if !span.IsRecording() {
		return
	}
	defer span.End()

	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}
}
