package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tokmz/reviewhub/pkg/logger"
	"go.uber.org/zap"
)

// Message 中继的 JSON 对象
type Message map[string]any

// Relay 房间广播
// 每次广播只编码一次，对成员快照逐个投递；单个接收方失败只记录日志和计数，不影响其他接收方，
// 也不会返回给调用方。
type Relay struct {
	registry *Registry
	logger   logger.Logger
	metrics  Metrics
	events   *EventBus

	workers    int
	bus        Bus
	instanceID string
}

// RelayOption Relay 选项
type RelayOption func(*Relay)

// WithRelayLogger 设置日志
func WithRelayLogger(l logger.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = l
	}
}

// WithRelayMetrics 设置监控
func WithRelayMetrics(m Metrics) RelayOption {
	return func(r *Relay) {
		r.metrics = m
	}
}

// WithRelayEvents 设置事件总线
func WithRelayEvents(eb *EventBus) RelayOption {
	return func(r *Relay) {
		r.events = eb
	}
}

// WithRelayWorkers 设置单次广播的并发投递数
func WithRelayWorkers(n int) RelayOption {
	return func(r *Relay) {
		r.workers = n
	}
}

// WithRelayBus 设置跨实例总线
func WithRelayBus(bus Bus, instanceID string) RelayOption {
	return func(r *Relay) {
		r.bus = bus
		r.instanceID = instanceID
	}
}

// NewRelay 创建 Relay
func NewRelay(registry *Registry, opts ...RelayOption) *Relay {
	r := &Relay{
		registry: registry,
		logger:   logger.NewNop(),
		metrics:  NoopMetrics{},
		workers:  1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Broadcast 向 room 内除 sender 外的所有成员广播 msg，返回本实例投递成功数
// sender 为 nil 时投递给全部成员（服务端通知）。
func (r *Relay) Broadcast(ctx context.Context, msg Message, room string, sender Conn) int {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.WarnContext(ctx, "encode broadcast failed", zap.String("room", room), zap.Error(err))
		r.metrics.IncrementDroppedMessages("encode")
		return 0
	}
	return r.BroadcastRaw(ctx, data, room, sender)
}

// BroadcastRaw 广播已编码的 JSON 对象
func (r *Relay) BroadcastRaw(ctx context.Context, data []byte, room string, sender Conn) int {
	delivered := r.deliver(ctx, data, room, sender)
	r.publish(ctx, data, room)
	return delivered
}

// deliver 对本地成员快照投递
func (r *Relay) deliver(ctx context.Context, data []byte, room string, sender Conn) int {
	start := time.Now()
	recipients := r.registry.MembersExcluding(room, sender)
	r.metrics.IncrementBroadcasts()

	var delivered atomic.Int64
	send := func(c Conn) {
		if err := sendOne(ctx, c, data); err != nil {
			r.deliveryFailed(ctx, c, room, err)
			return
		}
		delivered.Add(1)
	}

	workers := r.workers
	if workers > len(recipients) {
		workers = len(recipients)
	}
	if workers <= 1 {
		for _, c := range recipients {
			send(c)
		}
	} else {
		jobs := make(chan Conn)
		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				for c := range jobs {
					send(c)
				}
			}()
		}
		for _, c := range recipients {
			jobs <- c
		}
		close(jobs)
		wg.Wait()
	}

	n := int(delivered.Load())
	r.metrics.IncrementDelivered(n)
	r.metrics.RecordBroadcastLatency(time.Since(start))
	if r.events != nil {
		r.events.Publish(Event{Type: EventMessageRelayed, Room: room, Count: n})
	}
	return n
}

// sendOne 投递给单个接收方，panic 视为投递失败
func sendOne(ctx context.Context, c Conn, data []byte) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrDeliveryPanic, p)
		}
	}()
	return c.Send(ctx, data)
}

func (r *Relay) deliveryFailed(ctx context.Context, c Conn, room string, err error) {
	r.logger.WarnContext(ctx, "delivery failed",
		zap.String("conn_id", c.ID()),
		zap.String("room", room),
		zap.Error(err),
	)
	r.metrics.IncrementDroppedMessages(dropReason(err))
	if r.events != nil {
		r.events.Publish(Event{Type: EventDeliveryFailed, ConnID: c.ID(), Room: room, Err: err})
	}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrQueueFull):
		return "queue_full"
	case errors.Is(err, ErrSendTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrConnectionClosed):
		return "closed"
	case errors.Is(err, ErrDeliveryPanic):
		return "panic"
	default:
		return "error"
	}
}

// publish 转发到跨实例总线，失败只记录
func (r *Relay) publish(ctx context.Context, data []byte, room string) {
	if r.bus == nil {
		return
	}
	env := Envelope{Origin: r.instanceID, Room: room, Payload: data}
	if err := r.bus.Publish(ctx, env); err != nil {
		r.busFailed(ctx, "publish", room, err)
	}
}

func (r *Relay) busFailed(ctx context.Context, op, room string, err error) {
	r.logger.WarnContext(ctx, "relay bus failed",
		zap.String("op", op),
		zap.String("room", room),
		zap.Error(err),
	)
	r.metrics.IncrementBusErrors(op)
	if r.events != nil {
		r.events.Publish(Event{Type: EventBusFailed, Room: room, Err: err})
	}
}

// Run 订阅跨实例总线，将其他实例的广播投递给本地成员，阻塞直到 ctx 取消
// 订阅失败时按指数退避重连。
func (r *Relay) Run(ctx context.Context) {
	if r.bus == nil {
		return
	}
	backoff := 100 * time.Millisecond
	const maxBackoff = 10 * time.Second
	for {
		err := r.bus.Subscribe(ctx, func(env Envelope) {
			if env.Origin == r.instanceID {
				return
			}
			r.deliver(ctx, env.Payload, env.Room, nil)
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			r.busFailed(ctx, "subscribe", "", err)
		} else {
			backoff = 100 * time.Millisecond
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
