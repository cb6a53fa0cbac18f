package ws

import "time"

// Metrics 监控接口
type Metrics interface {
	// 连接指标
	IncrementConnections()
	DecrementConnections()
	IncrementRejectedConnections()

	// 房间指标
	SetRoomCount(count int)
	IncrementRoomsCreated()
	IncrementRoomsDestroyed()

	// 消息指标
	IncrementBroadcasts()
	IncrementDelivered(n int)
	IncrementDroppedMessages(reason string)
	IncrementInvalidMessages()
	RecordBroadcastLatency(d time.Duration)

	// 跨实例总线
	IncrementBusErrors(op string)
}

// NoopMetrics 空实现（默认）
type NoopMetrics struct{}

func (NoopMetrics) IncrementConnections()                {}
func (NoopMetrics) DecrementConnections()                {}
func (NoopMetrics) IncrementRejectedConnections()        {}
func (NoopMetrics) SetRoomCount(int)                     {}
func (NoopMetrics) IncrementRoomsCreated()               {}
func (NoopMetrics) IncrementRoomsDestroyed()             {}
func (NoopMetrics) IncrementBroadcasts()                 {}
func (NoopMetrics) IncrementDelivered(int)               {}
func (NoopMetrics) IncrementDroppedMessages(string)      {}
func (NoopMetrics) IncrementInvalidMessages()            {}
func (NoopMetrics) RecordBroadcastLatency(time.Duration) {}
func (NoopMetrics) IncrementBusErrors(string)            {}
