// Package job 基于 cron 表达式的进程内定时任务。
//
// 同名任务不会重叠执行：上一次未结束时本次触发被跳过。
package job

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tokmz/reviewhub/pkg/logger"
)

const tracerName = "reviewhub.job"

var (
	// ErrJobNotFound 任务不存在
	ErrJobNotFound = errors.New("job: not found")
	// ErrJobExists 任务名重复
	ErrJobExists = errors.New("job: already exists")
	// ErrJobRunning 上一次执行尚未结束
	ErrJobRunning = errors.New("job: still running")
	// ErrInvalidSpec 无法解析的 cron 表达式
	ErrInvalidSpec = errors.New("job: invalid cron spec")
)

// Func 任务函数，ctx 在超时或调度器停止时取消
type Func func(ctx context.Context) error

// Metrics 执行结果上报
type Metrics interface {
	ObserveJob(name string, d time.Duration, err error)
}

// Entry 任务快照
type Entry struct {
	Name string
	Spec string
	Prev time.Time
	Next time.Time
}

type entry struct {
	name    string
	spec    string
	fn      Func
	id      cron.EntryID
	running atomic.Bool
}

// parser 秒字段可选，支持 @every / @hourly 等描述符
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSpec 校验 cron 表达式
func ParseSpec(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidSpec, spec, err)
	}
	return nil
}

// Scheduler 定时任务调度器
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	log     logger.Logger
	metrics Metrics
	tracer  trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	entries map[string]*entry
}

// Option 调度器选项
type Option func(*Scheduler)

// WithTimeout 单次执行超时，默认 5 分钟
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(m Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// New 创建调度器
func New(opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(cron.WithParser(parser)),
		timeout: 5 * time.Minute,
		log:     logger.NewNop(),
		tracer:  otel.Tracer(tracerName),
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add 注册任务，可在 Start 前后调用
func (s *Scheduler) Add(name, spec string, fn Func) error {
	if err := ParseSpec(spec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, name)
	}
	e := &entry{name: name, spec: spec, fn: fn}
	id, err := s.cron.AddFunc(spec, func() {
		if err := s.execute(e); errors.Is(err, ErrJobRunning) {
			s.log.Warn("job skipped, previous run still in progress", zap.String("job", name))
		}
	})
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidSpec, spec, err)
	}
	e.id = id
	s.entries[name] = e
	return nil
}

// Run 立即同步执行一次
func (s *Scheduler) Run(name string) error {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(e)
}

func (s *Scheduler) execute(e *entry) (err error) {
	if !e.running.CompareAndSwap(false, true) {
		return ErrJobRunning
	}
	defer e.running.Store(false)

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	ctx, span := s.tracer.Start(ctx, "job "+e.name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("job.name", e.name),
			attribute.String("job.spec", e.spec),
		),
	)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panic: %v", e.name, r)
			s.log.ErrorContext(ctx, "job panic recovered",
				zap.String("job", e.name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}

		d := time.Since(start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.log.ErrorContext(ctx, "job failed", zap.String("job", e.name), zap.Duration("duration", d), zap.Error(err))
		} else {
			s.log.DebugContext(ctx, "job finished", zap.String("job", e.name), zap.Duration("duration", d))
		}
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveJob(e.name, d, err)
		}
	}()

	return e.fn(ctx)
}

// Entries 已注册任务，按名称排序
func (s *Scheduler) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		ce := s.cron.Entry(e.id)
		out = append(out, Entry{Name: e.name, Spec: e.spec, Prev: ce.Prev, Next: ce.Next})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start 启动调度
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度，取消执行中的任务并等待其返回
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
