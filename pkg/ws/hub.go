package ws

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tokmz/reviewhub/pkg/logger"
	"go.uber.org/zap"
)

// Hub WebSocket 会话入口
// 负责握手、连接数限制和会话生命周期；房间与广播分别由 Registry 和 Relay 完成。
type Hub struct {
	config   *Config
	upgrader websocket.Upgrader

	registry *Registry
	relay    *Relay
	events   *EventBus
	pool     *sessionPool

	logger  logger.Logger
	metrics Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	// lifeMu 保证 closed 置位后不再有 wg.Add
	lifeMu sync.Mutex
	closed atomic.Bool
}

// NewHub 创建 Hub
func NewHub(opts ...Option) (*Hub, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoopMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	log := cfg.Logger.Named("ws")
	events := NewEventBus(cfg.EventWorkers, cfg.EventQueueSize)
	registry := NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		config:   cfg,
		upgrader: newUpgrader(cfg.Upgrader, cfg.HandshakeTimeout),
		registry: registry,
		relay: NewRelay(registry,
			WithRelayLogger(log),
			WithRelayMetrics(cfg.Metrics),
			WithRelayEvents(events),
			WithRelayWorkers(cfg.BroadcastWorkers),
			WithRelayBus(cfg.Bus, cfg.InstanceID),
		),
		events:  events,
		pool:    newSessionPool(cfg.MaxConnections),
		logger:  log,
		metrics: cfg.Metrics,
		ctx:     ctx,
		cancel:  cancel,
	}
	return h, nil
}

// Start 启动跨实例订阅（未配置 Bus 时为空操作）
func (h *Hub) Start() {
	if h.config.Bus == nil {
		return
	}
	h.lifeMu.Lock()
	defer h.lifeMu.Unlock()
	if h.closed.Load() {
		return
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.relay.Run(h.ctx)
	}()
}

// ServeWS 升级连接并启动会话，room 为空时使用 DefaultRoom
// 升级成功后立即返回，会话在后台运行直到连接断开或 Hub 关闭。
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, clientID, room string) error {
	if clientID == "" {
		http.Error(w, "client id required", http.StatusBadRequest)
		return ErrEmptyClientID
	}
	if h.closed.Load() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return ErrHubClosed
	}
	if err := h.pool.reserve(); err != nil {
		h.metrics.IncrementRejectedConnections()
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return err
	}
	if room == "" {
		room = DefaultRoom
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已写出错误响应
		h.pool.release()
		return err
	}

	client := newClient(conn, h.config)
	session := newSession(h, client, clientID, room)

	h.lifeMu.Lock()
	if h.closed.Load() {
		h.lifeMu.Unlock()
		client.Close()
		h.pool.release()
		return ErrHubClosed
	}
	h.pool.add(session)
	h.metrics.IncrementConnections()
	h.wg.Add(2)
	h.lifeMu.Unlock()

	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		defer func() {
			h.pool.remove(session)
			h.metrics.DecrementConnections()
		}()
		session.run(h.ctx)
	}()
	return nil
}

// Registry 房间注册表
func (h *Hub) Registry() *Registry { return h.registry }

// Relay 广播器，供服务端主动推送
func (h *Hub) Relay() *Relay { return h.relay }

// Subscribe 订阅生命周期事件
func (h *Hub) Subscribe(t EventType, handler EventHandler) {
	h.events.Subscribe(t, handler)
}

// Session 按连接 ID 查找会话
func (h *Hub) Session(connID string) (*Session, bool) {
	return h.pool.get(connID)
}

// ConnectionCount 当前连接数
func (h *Hub) ConnectionCount() int {
	return h.pool.len()
}

// InstanceID 实例 ID
func (h *Hub) InstanceID() string { return h.config.InstanceID }

// Shutdown 关闭所有会话并等待后台 goroutine 退出
// 每个会话照常离开房间并广播断开通知。
func (h *Hub) Shutdown(ctx context.Context) error {
	h.lifeMu.Lock()
	if !h.closed.CompareAndSwap(false, true) {
		h.lifeMu.Unlock()
		return ErrHubClosed
	}
	h.lifeMu.Unlock()
	h.cancel()

	h.pool.rangeSessions(func(s *Session) bool {
		s.client.Close()
		return true
	})

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	h.events.Close()
	if h.config.Bus != nil {
		if cerr := h.config.Bus.Close(); cerr != nil {
			h.logger.Warn("close relay bus", zap.Error(cerr))
		}
	}
	return err
}
