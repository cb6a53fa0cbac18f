package logger

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 日志接口
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Fatal(msg string, fields ...zap.Field)

	// 带 Context 的日志方法（自动提取 trace_id、span_id）
	DebugContext(ctx context.Context, msg string, fields ...zap.Field)
	InfoContext(ctx context.Context, msg string, fields ...zap.Field)
	WarnContext(ctx context.Context, msg string, fields ...zap.Field)
	ErrorContext(ctx context.Context, msg string, fields ...zap.Field)

	With(fields ...zap.Field) Logger
	Named(name string) Logger
	WithContext(ctx context.Context) Logger
	Sync() error
	SetLevel(level Level)
	Level() Level

	// Zap 返回底层 zap.Logger，供需要原生 zap 的组件使用
	Zap() *zap.Logger
}

type logger struct {
	zap   *zap.Logger
	level zap.AtomicLevel
}

// New 创建 Logger
func New(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()

	writers, err := buildWriters(cfg)
	if err != nil {
		return nil, err
	}
	if len(writers) == 0 {
		return nil, fmt.Errorf("logger: no output configured")
	}

	level := zap.NewAtomicLevelAt(cfg.Level.toZapLevel())
	core := zapcore.NewCore(buildEncoder(cfg), zapcore.NewMultiWriteSyncer(writers...), level)
	if cfg.Sampling != nil {
		core = zapcore.NewSamplerWithOptions(core, 1e9, cfg.Sampling.Initial, cfg.Sampling.Thereafter)
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return &logger{zap: zap.New(core, opts...), level: level}, nil
}

// NewWithOptions 使用 Options 创建 Logger
func NewWithOptions(opts ...Option) (Logger, error) {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return New(cfg)
}

// NewProduction 生产环境 Logger
func NewProduction() (Logger, error) {
	return NewWithOptions(
		WithLevel(InfoLevel),
		WithFormat(JSONFormat),
		WithConsoleOutput(),
		WithStacktrace(true),
	)
}

// NewDevelopment 开发环境 Logger
func NewDevelopment() (Logger, error) {
	return NewWithOptions(
		WithLevel(DebugLevel),
		WithFormat(ConsoleFormat),
		WithConsoleOutput(),
		WithCaller(true),
		WithStacktrace(true),
	)
}

// NewNop 丢弃所有输出的 Logger
func NewNop() Logger {
	return &logger{zap: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.FatalLevel)}
}

// FromZap 包装已有的 zap.Logger（测试中配合 zaptest/observer 使用）
func FromZap(z *zap.Logger) Logger {
	return &logger{zap: z, level: zap.NewAtomicLevelAt(zapcore.DebugLevel)}
}

func buildEncoder(cfg *Config) zapcore.Encoder {
	enc := cfg.EncoderConfig
	if enc == nil {
		enc = &zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}
	}
	if cfg.Format == ConsoleFormat {
		return zapcore.NewConsoleEncoder(*enc)
	}
	return zapcore.NewJSONEncoder(*enc)
}

func buildWriters(cfg *Config) ([]zapcore.WriteSyncer, error) {
	var writers []zapcore.WriteSyncer
	if cfg.Console {
		writers = append(writers, zapcore.Lock(os.Stdout))
	}
	if cfg.File != "" {
		w, _, err := zap.Open(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("logger: open %s: %w", cfg.File, err)
		}
		writers = append(writers, w)
	}
	if r := cfg.Rotate; r != nil {
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   r.Filename,
			MaxSize:    r.MaxSize,
			MaxAge:     r.MaxAge,
			MaxBackups: r.MaxBackups,
			LocalTime:  true,
			Compress:   r.Compress,
		}))
	}
	return writers, nil
}

func (l *logger) Debug(msg string, fields ...zap.Field) { l.zap.Debug(msg, fields...) }
func (l *logger) Info(msg string, fields ...zap.Field)  { l.zap.Info(msg, fields...) }
func (l *logger) Warn(msg string, fields ...zap.Field)  { l.zap.Warn(msg, fields...) }
func (l *logger) Error(msg string, fields ...zap.Field) { l.zap.Error(msg, fields...) }
func (l *logger) Fatal(msg string, fields ...zap.Field) { l.zap.Fatal(msg, fields...) }

func (l *logger) DebugContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Debug(msg, contextFields(ctx, fields)...)
}

func (l *logger) InfoContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Info(msg, contextFields(ctx, fields)...)
}

func (l *logger) WarnContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Warn(msg, contextFields(ctx, fields)...)
}

func (l *logger) ErrorContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Error(msg, contextFields(ctx, fields)...)
}

// With 创建带字段的子 Logger，共享级别
func (l *logger) With(fields ...zap.Field) Logger {
	return &logger{zap: l.zap.With(fields...), level: l.level}
}

// Named 创建命名子 Logger
func (l *logger) Named(name string) Logger {
	return &logger{zap: l.zap.Named(name), level: l.level}
}

// WithContext 创建携带 trace 字段的子 Logger
func (l *logger) WithContext(ctx context.Context) Logger {
	return l.With(contextFields(ctx, nil)...)
}

func (l *logger) Sync() error {
	return l.zap.Sync()
}

// SetLevel 动态调整级别，对所有子 Logger 生效
func (l *logger) SetLevel(level Level) {
	l.level.SetLevel(level.toZapLevel())
}

func (l *logger) Level() Level {
	return Level(l.level.Level())
}

func (l *logger) Zap() *zap.Logger {
	return l.zap
}
