package review

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/tokmz/reviewhub/pkg/cache"
	"github.com/tokmz/reviewhub/pkg/logger"
	"github.com/tokmz/reviewhub/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Service 评测业务
// 读取经缓存与 id 过滤器，写入后失效缓存并通知中继。
type Service struct {
	repo     Repository
	cache    *cache.Group
	ttl      time.Duration
	ids      *idFilter
	notifier Notifier
	log      logger.Logger
	now      func() time.Time
}

// ServiceOption 服务选项
type ServiceOption func(*Service)

// WithCache 启用读缓存
func WithCache(c cache.Cache, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = cache.NewGroup(c)
		s.ttl = ttl
	}
}

// WithNotifier 设置变更通知
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithLogger 设置日志
func WithLogger(l logger.Logger) ServiceOption {
	return func(s *Service) {
		s.log = l
	}
}

// withClock 测试中固定时间
func withClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService 创建服务，调用方需随后执行 Warm 加载 id 过滤器
func NewService(repo Repository, opts ...ServiceOption) *Service {
	s := &Service{
		repo:     repo,
		ttl:      10 * time.Minute,
		ids:      newIDFilter(0),
		notifier: nopNotifier{},
		log:      logger.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("review")
	return s
}

func cacheKey(id uint) string {
	return "review:" + strconv.FormatUint(uint64(id), 10)
}

// Warm 从存储重建 id 过滤器
func (s *Service) Warm(ctx context.Context) error {
	n, err := s.ids.Rebuild(func() ([]uint, error) {
		return s.repo.IDs(ctx)
	})
	if err != nil {
		return err
	}
	s.log.Info("id filter rebuilt", zap.Int("count", n))
	return nil
}

// Get 读取单个评测
func (s *Service) Get(ctx context.Context, id uint) (rv *Review, err error) {
	ctx, span := tracing.StartSpan(ctx, "review.Get", trace.WithAttributes(attribute.Int64("review.id", int64(id))))
	defer func() {
		if !errors.Is(err, ErrReviewNotFound) {
			tracing.RecordError(span, err)
		}
		span.End()
	}()

	if id == 0 {
		return nil, ErrReviewNotFound
	}
	// 过滤器只在本进程内学习 id，未命中时仍以存储为准，
	// 其他实例或外部写入的记录查到后补记到过滤器
	if !s.ids.Test(id) {
		span.SetAttributes(attribute.Bool("review.id_filter_miss", true))
		rv, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		s.ids.Add(id)
		return rv, nil
	}

	load := func(ctx context.Context) (*Review, error) {
		return s.repo.Get(ctx, id)
	}
	if s.cache == nil {
		return load(ctx)
	}
	return cache.Remember(ctx, s.cache, cacheKey(id), s.ttl, load)
}

// List 分页查询，不经缓存
func (s *Service) List(ctx context.Context, q ListQuery) ([]Review, int64, error) {
	if err := q.normalize(); err != nil {
		return nil, 0, err
	}
	ctx, span := tracing.StartSpan(ctx, "review.List")
	defer span.End()

	reviews, total, err := s.repo.List(ctx, q)
	tracing.RecordError(span, err)
	return reviews, total, err
}

// Create 创建评测并通知列表页
func (s *Service) Create(ctx context.Context, in CreateInput) (*Review, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	ctx, span := tracing.StartSpan(ctx, "review.Create")
	defer span.End()

	rv := in.toReview(s.now())
	if err := s.repo.Create(ctx, rv); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	s.ids.Add(rv.ID)
	s.log.InfoContext(ctx, "review created", zap.Uint("id", rv.ID), zap.String("title", rv.Title))
	s.notifier.Notify(ctx, ListRoom, EventCreated, rv.ID)
	return rv, nil
}

// Update 部分更新，updated_at 置为当前时间
func (s *Service) Update(ctx context.Context, id uint, in UpdateInput) (*Review, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	ctx, span := tracing.StartSpan(ctx, "review.Update", trace.WithAttributes(attribute.Int64("review.id", int64(id))))
	defer span.End()

	rv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(rv)
	rv.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, rv); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	s.invalidate(ctx, id)
	s.notifier.Notify(ctx, DetailRoom(id), EventUpdated, id)
	return rv, nil
}

// Delete 删除评测并通知详情页
func (s *Service) Delete(ctx context.Context, id uint) error {
	ctx, span := tracing.StartSpan(ctx, "review.Delete", trace.WithAttributes(attribute.Int64("review.id", int64(id))))
	defer span.End()

	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, ErrReviewNotFound) {
			tracing.RecordError(span, err)
		}
		return err
	}
	s.invalidate(ctx, id)
	s.log.InfoContext(ctx, "review deleted", zap.Uint("id", id))
	s.notifier.Notify(ctx, DetailRoom(id), EventDeleted, id)
	return nil
}

// invalidate 删除缓存，失败只记录日志，缓存在 ttl 后自然过期
func (s *Service) invalidate(ctx context.Context, id uint) {
	if s.cache == nil {
		return
	}
	key := cacheKey(id)
	s.cache.Forget(key)
	if err := s.cache.Cache().Delete(ctx, key); err != nil {
		s.log.WarnContext(ctx, "cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}

// Seed 表为空时批量写入，返回写入条数；不发送通知
func (s *Service) Seed(ctx context.Context, inputs []CreateInput) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 || len(inputs) == 0 {
		return 0, nil
	}

	now := s.now()
	reviews := make([]*Review, 0, len(inputs))
	for i := range inputs {
		if err := inputs[i].validate(); err != nil {
			return 0, ErrInvalidReview.WithMessagef("seed entry %d: %s", i, err.Error())
		}
		// 同一批次内按出现顺序递减，保证列表倒序与文件顺序一致
		reviews = append(reviews, inputs[i].toReview(now.Add(-time.Duration(i)*time.Second)))
	}
	if err := s.repo.CreateBatch(ctx, reviews); err != nil {
		return 0, err
	}
	for _, rv := range reviews {
		s.ids.Add(rv.ID)
	}
	s.log.Info("reviews seeded", zap.Int("count", len(reviews)))
	return len(reviews), nil
}
