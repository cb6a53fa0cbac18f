package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sony/gobreaker"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tokmz/reviewhub"
	"github.com/tokmz/reviewhub/middleware"
	"github.com/tokmz/reviewhub/pkg/cache"
	"github.com/tokmz/reviewhub/pkg/config"
	"github.com/tokmz/reviewhub/pkg/job"
	"github.com/tokmz/reviewhub/pkg/logger"
	"github.com/tokmz/reviewhub/pkg/metrics"
	"github.com/tokmz/reviewhub/pkg/orm"
	"github.com/tokmz/reviewhub/pkg/review"
	"github.com/tokmz/reviewhub/pkg/tracing"
	"github.com/tokmz/reviewhub/pkg/ws"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "配置文件路径，为空时查找 ./config.yaml 与 ./configs/config.yaml")
	pflag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "reviewhub: %v\n", err)
		os.Exit(1)
	}
}

// app 运行期依赖
type app struct {
	cfg    *config.AppConfig
	loader *config.Config
	log    logger.Logger

	tracer   *tracing.Provider
	db       *gorm.DB
	cache    cache.Cache
	registry *prometheus.Registry
	hub      *ws.Hub
	reviews  *review.Service
	limiter  *middleware.RateLimiter
	jobs     *job.Scheduler

	adminSecret atomic.Value // string
}

func run(configPath string) error {
	a, engine, err := setup(context.Background(), configPath)
	if err != nil {
		return err
	}
	defer a.loader.Close()
	defer func() { _ = a.log.Sync() }()

	if err := a.loader.Watch(a.reload); err != nil {
		a.log.Warn("config watch disabled", zap.Error(err))
	}
	return engine.Run()
}

// setup 按顺序初始化全部组件并注册路由
func setup(ctx context.Context, configPath string) (*app, *reviewhub.Engine, error) {
	// 1. 配置
	cfg, loader, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	// 2. 日志
	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{cfg: cfg, loader: loader, log: log}
	a.adminSecret.Store(cfg.Admin.Secret)

	// 3. 链路追踪
	if cfg.Tracing.ServiceVersion == "" || cfg.Tracing.ServiceVersion == "dev" {
		cfg.Tracing.ServiceVersion = reviewhub.Version
	}
	if a.tracer, err = tracing.Setup(ctx, &cfg.Tracing); err != nil {
		return nil, nil, fmt.Errorf("init tracing: %w", err)
	}

	// 4. 数据库
	if a.db, err = orm.Open(&cfg.Database, log); err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	repo := review.NewGormRepository(a.db)
	if err := repo.Migrate(ctx); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	// 5. 缓存
	if a.cache, err = cache.New(&cfg.Cache); err != nil {
		return nil, nil, fmt.Errorf("init cache: %w", err)
	}

	// 6. 指标
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	relayMetrics := metrics.NewRelayMetrics(a.registry)
	httpMetrics := metrics.NewHTTPMetrics(a.registry)

	// 7. WebSocket 中继
	bus, err := newBus(ctx, cfg.Bus, a.cache, log)
	if err != nil {
		return nil, nil, fmt.Errorf("init relay bus: %w", err)
	}
	if a.hub, err = newHub(cfg.Relay, bus, relayMetrics, log); err != nil {
		if bus != nil {
			_ = bus.Close()
		}
		return nil, nil, fmt.Errorf("init relay: %w", err)
	}
	a.hub.Start()

	// 8. 评测服务
	a.reviews = review.NewService(repo,
		review.WithCache(a.cache, cfg.Cache.DefaultTTL),
		review.WithNotifier(review.NewRelayNotifier(a.hub.Relay())),
		review.WithLogger(log.Named("review")),
	)
	if err := a.reviews.Warm(ctx); err != nil {
		return nil, nil, fmt.Errorf("warm review ids: %w", err)
	}
	if err := a.seed(ctx); err != nil {
		return nil, nil, err
	}

	// 9. 定时任务
	if cfg.Jobs.Enabled {
		if err := a.startJobs(metrics.NewJobMetrics(a.registry)); err != nil {
			return nil, nil, fmt.Errorf("init jobs: %w", err)
		}
	}

	// 10. HTTP
	return a, a.newEngine(httpMetrics), nil
}

func newLogger(cfg config.LogConfig) (logger.Logger, error) {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logger.New(&logger.Config{
		Level:            level,
		Format:           logger.Format(cfg.Format),
		Console:          true,
		File:             cfg.File,
		Rotate:           cfg.Rotate,
		EnableCaller:     true,
		EnableStacktrace: true,
	})
}

// newBus 按配置创建跨实例总线，driver 为 none 时返回 nil
func newBus(ctx context.Context, cfg config.BusConfig, c cache.Cache, log logger.Logger) (ws.Bus, error) {
	var (
		bus ws.Bus
		err error
	)
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "redis":
		// 缓存本身是 Redis 时复用其连接
		if rdb, ok := cache.RedisClient(c); ok {
			bus = ws.NewRedisBus(rdb, cfg.ChannelPrefix)
		} else {
			dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			bus, err = ws.DialRedisBus(dialCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ChannelPrefix)
			cancel()
		}
	case "amqp":
		bus, err = ws.DialAMQPBus(cfg.AMQPURL, cfg.Exchange)
	case "kafka":
		bus, err = ws.DialKafkaBus(cfg.Brokers, cfg.Topic)
	default:
		return nil, fmt.Errorf("unknown bus driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	log.Info("relay bus enabled", zap.String("driver", cfg.Driver))
	return ws.NewBreakerBus(bus, ws.BreakerSettings{
		Name:        "relay-bus-" + cfg.Driver,
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("relay bus breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}), nil
}

func newHub(cfg config.RelayConfig, bus ws.Bus, m ws.Metrics, log logger.Logger) (*ws.Hub, error) {
	policy, err := ws.ParseMalformedPolicy(cfg.MalformedPolicy)
	if err != nil {
		return nil, err
	}
	opts := []ws.Option{
		ws.WithMaxConnections(cfg.MaxConnections),
		ws.WithMessageSizeLimit(cfg.MaxMessageSize),
		ws.WithSendQueueSize(cfg.SendQueueSize),
		ws.WithSendTimeout(cfg.SendTimeout),
		ws.WithBroadcastWorkers(cfg.BroadcastWorkers),
		ws.WithHeartbeat(cfg.HeartbeatInterval, cfg.HeartbeatTimeout),
		ws.WithMalformedPolicy(policy),
		ws.WithCheckOriginWhitelist(cfg.AllowedOrigins),
		ws.WithMetrics(m),
		ws.WithLogger(log.Named("relay")),
	}
	if bus != nil {
		opts = append(opts, ws.WithBus(bus))
	}
	return ws.NewHub(opts...)
}

// seed 导入示例数据，表非空时跳过
func (a *app) seed(ctx context.Context) error {
	if a.cfg.Seed.File == "" {
		return nil
	}
	inputs, err := review.LoadSeed(a.cfg.Seed.File)
	if err != nil {
		return fmt.Errorf("load seed: %w", err)
	}
	n, err := a.reviews.Seed(ctx, inputs)
	if err != nil {
		return fmt.Errorf("seed reviews: %w", err)
	}
	a.log.Info("seed finished", zap.String("file", a.cfg.Seed.File), zap.Int("inserted", n))
	return nil
}

// startJobs 注册并启动维护任务
func (a *app) startJobs(m job.Metrics) error {
	a.jobs = job.New(
		job.WithTimeout(a.cfg.Jobs.Timeout),
		job.WithLogger(a.log.Named("job")),
		job.WithMetrics(m),
	)
	// 删除的 id 不会从过滤器移除，定期按存储重建
	if spec := a.cfg.Jobs.RebuildIDs; spec != "" {
		if err := a.jobs.Add("review-ids-rebuild", spec, a.reviews.Warm); err != nil {
			return err
		}
	}
	if spec := a.cfg.Jobs.RelayStats; spec != "" {
		if err := a.jobs.Add("relay-stats", spec, a.relayStats); err != nil {
			return err
		}
	}
	a.jobs.Start()
	return nil
}

func (a *app) relayStats(ctx context.Context) error {
	a.log.InfoContext(ctx, "relay stats",
		zap.Int("connections", a.hub.ConnectionCount()),
		zap.Int("rooms", a.hub.Registry().RoomCount()),
	)
	return nil
}

// reload 配置文件变更回调，只处理可在运行期生效的字段
func (a *app) reload(cfg *config.AppConfig) {
	if level, err := logger.ParseLevel(cfg.Log.Level); err == nil && level != a.log.Level() {
		a.log.SetLevel(level)
		a.log.Info("log level changed", zap.String("level", level.String()))
	}
	if cfg.Admin.Secret != a.secret() {
		a.adminSecret.Store(cfg.Admin.Secret)
		a.log.Info("admin secret rotated")
	}
}

func (a *app) secret() string {
	s, _ := a.adminSecret.Load().(string)
	return s
}

// closeRelay 在 HTTP 服务停止前关闭中继，已升级的连接不受 http.Server.Shutdown 管理
func (a *app) closeRelay(ctx context.Context) {
	if err := a.hub.Shutdown(ctx); err != nil {
		a.log.Warn("relay shutdown", zap.Error(err))
	}
}

// closeResources HTTP 请求排空后依次释放定时任务、限流器、缓存、数据库与 tracer
func (a *app) closeResources() {
	if a.jobs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.jobs.Stop(ctx); err != nil {
			a.log.Warn("stop jobs", zap.Error(err))
		}
		cancel()
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if err := a.cache.Close(); err != nil {
		a.log.Warn("close cache", zap.Error(err))
	}
	if err := orm.Close(a.db); err != nil {
		a.log.Warn("close database", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.log.Warn("tracer shutdown", zap.Error(err))
	}
}
