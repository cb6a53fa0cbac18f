package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tokmz/reviewhub"
	"github.com/tokmz/reviewhub/middleware"
	apperrors "github.com/tokmz/reviewhub/pkg/errors"
	"github.com/tokmz/reviewhub/pkg/metrics"
	"github.com/tokmz/reviewhub/pkg/orm"
	"github.com/tokmz/reviewhub/pkg/review"
)

// StatusResp 根路径响应
type StatusResp struct {
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

// HealthResp 健康检查响应
type HealthResp struct {
	Database    string `json:"database"`
	Cache       string `json:"cache"`
	Connections int    `json:"connections"`
}

func (a *app) newEngine(httpMetrics *metrics.HTTPMetrics) *reviewhub.Engine {
	cfg := a.cfg
	engine := reviewhub.Default(
		reviewhub.WithLogger(a.log),
		reviewhub.WithMode(cfg.Server.Mode),
		reviewhub.WithAddr(cfg.Server.Addr),
		reviewhub.WithReadTimeout(cfg.Server.ReadTimeout),
		reviewhub.WithWriteTimeout(cfg.Server.WriteTimeout),
		reviewhub.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		reviewhub.WithBeforeShutdown(a.closeRelay),
		reviewhub.WithAfterShutdown(a.closeResources),
	)

	skip := []string{cfg.Metrics.Path, "/healthz"}

	// 中间件
	engine.Use(middleware.Tracing(&middleware.TracingConfig{ExcludePaths: skip}))
	if cfg.Metrics.Enabled {
		engine.UseGin(httpMetrics.Middleware())
	}
	cors := middleware.DefaultCORSConfig()
	if len(cfg.CORS.AllowedOrigins) > 0 {
		cors.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	engine.Use(middleware.CORS(cors))
	if cfg.RateLimit.Enabled {
		a.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RPS,
			Burst:             cfg.RateLimit.Burst,
			ExcludePaths:      skip,
			Logger:            a.log.Named("ratelimit"),
		})
		engine.Use(a.limiter.Handler())
	}

	a.registerRoutes(engine)
	return engine
}

func (a *app) registerRoutes(engine *reviewhub.Engine) {
	r := engine.RouterGroup()

	reviewhub.HandleOnly[StatusResp](r.GET, "/", func(*reviewhub.Context) (*StatusResp, error) {
		return &StatusResp{Status: "online", Msg: "reviewhub " + reviewhub.Version}, nil
	})

	// 评测，配置已校验 response_mode
	mode, _ := reviewhub.ParseResponseMode(a.cfg.Reviews.ResponseMode)
	reviews := engine.Group("/reviews", reviewhub.WithResponseMode(mode))
	review.NewHandler(a.reviews).Register(reviews, middleware.AdminToken(a.secret))

	// WebSocket，page 查询参数为房间名
	r.GET("/ws/:client_id", a.serveWS)

	// 运维
	if a.cfg.Metrics.Enabled {
		r.Handle("GET", a.cfg.Metrics.Path, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{
			Registry:          a.registry,
			EnableOpenMetrics: true,
		}))
	}
	reviewhub.HandleOnly[HealthResp](r.GET, "/healthz", a.health)
}

func (a *app) serveWS(c *reviewhub.Context) {
	clientID := c.Param("client_id")
	room := c.Query("page")
	// ServeWS 已写出失败响应
	if err := a.hub.ServeWS(c.Writer(), c.Request(), clientID, room); err != nil {
		a.log.DebugContext(c.RequestContext(), "websocket upgrade rejected",
			zap.String("client_id", clientID),
			zap.String("room", room),
			zap.Error(err),
		)
	}
}

func (a *app) health(c *reviewhub.Context) (*HealthResp, error) {
	ctx, cancel := context.WithTimeout(c.RequestContext(), 2*time.Second)
	defer cancel()

	resp := &HealthResp{Database: "ok", Cache: "ok", Connections: a.hub.ConnectionCount()}
	var failed error
	if err := orm.Ping(ctx, a.db); err != nil {
		resp.Database = err.Error()
		failed = err
	}
	if err := a.cache.Ping(ctx); err != nil {
		resp.Cache = err.Error()
		failed = err
	}
	if failed != nil {
		a.log.WarnContext(ctx, "health check failed", zap.Any("status", resp))
		return nil, apperrors.ErrServiceUnavailable.WithError(failed)
	}
	return resp, nil
}
