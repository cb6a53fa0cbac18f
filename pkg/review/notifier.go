package review

import (
	"context"
	"strconv"

	"github.com/tokmz/reviewhub/pkg/ws"
)

// 写入通知类型
const (
	EventCreated = "review.created"
	EventUpdated = "review.updated"
	EventDeleted = "review.deleted"
)

// ListRoom 列表页所在房间
const ListRoom = "/reviews/"

// DetailRoom 详情页所在房间
func DetailRoom(id uint) string {
	return ListRoom + strconv.FormatUint(uint64(id), 10)
}

// Notifier 评测变更通知
type Notifier interface {
	Notify(ctx context.Context, room, event string, id uint)
}

// RelayNotifier 通过 websocket 中继通知浏览该页面的客户端
type RelayNotifier struct {
	relay *ws.Relay
}

// NewRelayNotifier 创建通知器
func NewRelayNotifier(relay *ws.Relay) *RelayNotifier {
	return &RelayNotifier{relay: relay}
}

// Notify 以服务端身份广播，sender 为 nil，房间内所有成员都会收到
func (n *RelayNotifier) Notify(ctx context.Context, room, event string, id uint) {
	n.relay.Broadcast(context.WithoutCancel(ctx), ws.Message{
		"type":      event,
		"review_id": id,
	}, room, nil)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string, uint) {}
