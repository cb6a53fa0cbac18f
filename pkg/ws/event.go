package ws

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType 事件类型
type EventType string

const (
	// EventSessionJoined 会话加入房间
	EventSessionJoined EventType = "session.joined"
	// EventSessionClosed 会话关闭
	EventSessionClosed EventType = "session.closed"
	// EventRoomCreated 房间创建（首个成员加入）
	EventRoomCreated EventType = "room.created"
	// EventRoomDestroyed 房间删除（最后一个成员离开）
	EventRoomDestroyed EventType = "room.destroyed"
	// EventMessageRelayed 消息已中继
	EventMessageRelayed EventType = "message.relayed"
	// EventMessageInvalid 收到非法消息
	EventMessageInvalid EventType = "message.invalid"
	// EventDeliveryFailed 单个接收方投递失败
	EventDeliveryFailed EventType = "delivery.failed"
	// EventBusFailed 跨实例总线发布或订阅失败
	EventBusFailed EventType = "bus.failed"
)

// Event 事件
type Event struct {
	Type     EventType
	ConnID   string
	ClientID string
	Room     string
	Count    int
	Err      error
	Time     time.Time
}

// EventHandler 事件处理器
type EventHandler func(Event)

// EventBus 异步事件总线
// 固定数量 worker 消费有界队列，队列满时丢弃事件并计数
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
	queue    chan func()
	stopCh   chan struct{}
	wg       sync.WaitGroup
	closed   atomic.Bool
	dropped  atomic.Int64
}

// NewEventBus 创建事件总线
func NewEventBus(workers, queueSize int) *EventBus {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	eb := &EventBus{
		handlers: make(map[EventType][]EventHandler),
		queue:    make(chan func(), queueSize),
		stopCh:   make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		eb.wg.Add(1)
		go eb.worker()
	}
	return eb
}

func (eb *EventBus) worker() {
	defer eb.wg.Done()
	for {
		select {
		case task := <-eb.queue:
			task()
		case <-eb.stopCh:
			return
		}
	}
}

// Subscribe 订阅事件
func (eb *EventBus) Subscribe(t EventType, h EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers[t] = append(eb.handlers[t], h)
}

// Publish 发布事件（非阻塞）
func (eb *EventBus) Publish(e Event) {
	if eb.closed.Load() {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	eb.mu.RLock()
	handlers := eb.handlers[e.Type]
	eb.mu.RUnlock()

	for _, h := range handlers {
		h := h
		select {
		case eb.queue <- func() { safeHandle(h, e) }:
		default:
			eb.dropped.Add(1)
		}
	}
}

// safeHandle 订阅方 panic 不影响 worker
func safeHandle(h EventHandler, e Event) {
	defer func() { _ = recover() }()
	h(e)
}

// Close 停止 worker，未处理的事件被丢弃
func (eb *EventBus) Close() {
	if !eb.closed.CompareAndSwap(false, true) {
		return
	}
	close(eb.stopCh)
	eb.wg.Wait()
}

// DroppedEvents 丢弃的事件数
func (eb *EventBus) DroppedEvents() int64 {
	return eb.dropped.Load()
}
