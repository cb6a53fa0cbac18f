package reviewhub

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/tokmz/reviewhub/pkg/logger"
	"go.uber.org/zap"
)

// Engine 包装 gin.Engine 与 http.Server
type Engine struct {
	config *Config
	engine *gin.Engine
	server *http.Server
	log    logger.Logger
}

// New 创建 Engine，默认只挂载 Recovery
func New(opts ...Option) *Engine {
	config := defaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	if config.Logger == nil {
		config.Logger = logger.NewNop()
	}

	// gin.SetMode 是全局状态，进程内应只创建一个 Engine
	gin.SetMode(config.Mode)
	silenceGin()

	ginEngine := gin.New()
	ginEngine.ContextWithFallback = true

	if config.TrustedProxies != nil {
		if err := ginEngine.SetTrustedProxies(config.TrustedProxies); err != nil {
			config.Logger.Warn("set trusted proxies failed", zap.Error(err))
		}
	}

	e := &Engine{
		engine: ginEngine,
		config: config,
		log:    config.Logger.Named("http"),
	}
	e.Use(Recovery(e.log))
	return e
}

// Default 创建带访问日志的 Engine
func Default(opts ...Option) *Engine {
	e := New(opts...)
	e.Use(Logger(e.log))
	return e
}

// Use 注册全局中间件
func (e *Engine) Use(middlewares ...HandlerFunc) {
	e.engine.Use(WrapMiddlewares(middlewares...)...)
}

// UseGin 注册原生 gin 中间件
func (e *Engine) UseGin(middlewares ...gin.HandlerFunc) {
	e.engine.Use(middlewares...)
}

// Group 返回路由组
func (e *Engine) Group(path string, middlewares ...HandlerFunc) *RouterGroup {
	return &RouterGroup{
		group: e.engine.Group(path, WrapMiddlewares(middlewares...)...),
	}
}

// RouterGroup 返回根路由组
func (e *Engine) RouterGroup() *RouterGroup {
	return &RouterGroup{
		group: &e.engine.RouterGroup,
	}
}

// NoRoute 未匹配路由的处理函数
func (e *Engine) NoRoute(handler HandlerFunc) {
	e.engine.NoRoute(wrap(handler))
}

// Handler 返回 http.Handler，测试中配合 httptest 使用
func (e *Engine) Handler() http.Handler {
	return e.engine
}

// Routes 已注册的路由
func (e *Engine) Routes() gin.RoutesInfo {
	return e.engine.Routes()
}

// Run 启动 HTTP 服务器，收到 SIGINT/SIGTERM 后优雅关机
func (e *Engine) Run(addr ...string) error {
	address := e.config.Server.Addr
	if len(addr) > 0 && addr[0] != "" {
		address = addr[0]
	}
	e.server = e.newServer(address)
	e.logStartup(address)

	return e.serve(func() error {
		return e.server.ListenAndServe()
	})
}

// RunTLS 启动 HTTPS 服务器，支持优雅关机
func (e *Engine) RunTLS(addr, certFile, keyFile string) error {
	e.server = e.newServer(addr)
	e.logStartup(addr)

	return e.serve(func() error {
		return e.server.ListenAndServeTLS(certFile, keyFile)
	})
}

func (e *Engine) newServer(addr string) *http.Server {
	return &http.Server{
		Addr:           addr,
		Handler:        e.engine,
		ReadTimeout:    e.config.Server.ReadTimeout,
		WriteTimeout:   e.config.Server.WriteTimeout,
		IdleTimeout:    e.config.Server.IdleTimeout,
		MaxHeaderBytes: e.config.Server.MaxHeaderBytes,
	}
}

// serve 统一的服务器启动和优雅关机逻辑
func (e *Engine) serve(startFunc func() error) error {
	errChan := make(chan error, 1)
	go func() {
		if err := startFunc(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errChan:
		return err
	case sig := <-quit:
		e.log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.config.Shutdown.Timeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.log.Error("forced shutdown", zap.Error(err))
		return err
	}
	e.log.Info("server exited")
	return nil
}

// Shutdown 关闭服务器
// 先执行 BeforeShutdown，已升级的 websocket 连接不被 http.Server.Shutdown 跟踪，需要在此关闭。
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.config.Shutdown.BeforeShutdown != nil {
		e.config.Shutdown.BeforeShutdown(ctx)
	}

	var err error
	if e.server != nil {
		err = e.server.Shutdown(ctx)
	}

	if e.config.Shutdown.AfterShutdown != nil {
		e.config.Shutdown.AfterShutdown()
	}
	return err
}
