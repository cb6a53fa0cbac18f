package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State 会话状态
type State int32

const (
	// StateConnecting 握手完成，尚未加入房间
	StateConnecting State = iota
	// StateJoined 已加入房间，正在中继消息
	StateJoined
	// StateClosed 已离开房间（终态）
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DisconnectType 断开通知的 type 字段
const DisconnectType = "disconnect"

// Session 一个 WebSocket 会话
// 加入 room 后把收到的每个 JSON 对象加上 id 字段转发给同房间其他成员，
// 断开时离开房间并向剩余成员广播断开通知。
type Session struct {
	hub      *Hub
	client   *Client
	clientID string
	room     string

	state     atomic.Int32
	closeOnce sync.Once
}

func newSession(hub *Hub, client *Client, clientID, room string) *Session {
	return &Session{hub: hub, client: client, clientID: clientID, room: room}
}

// ClientID 客户端自报的 ID（可重复）
func (s *Session) ClientID() string { return s.clientID }

// Room 所在房间
func (s *Session) Room() string { return s.room }

// State 当前状态
func (s *Session) State() State { return State(s.state.Load()) }

// ConnID 连接唯一标识
func (s *Session) ConnID() string { return s.client.ID() }

// run 加入房间并循环读取，直到连接断开、收到非法消息（close 策略）或 Hub 关闭
func (s *Session) run(ctx context.Context) {
	h := s.hub
	log := h.logger.With(
		zap.String("conn_id", s.client.ID()),
		zap.String("client_id", s.clientID),
		zap.String("room", s.room),
	)

	if h.registry.Join(s.client, s.room) {
		h.metrics.IncrementRoomsCreated()
		h.events.Publish(Event{Type: EventRoomCreated, Room: s.room})
	}
	h.metrics.SetRoomCount(h.registry.RoomCount())
	s.state.Store(int32(StateJoined))
	h.events.Publish(Event{Type: EventSessionJoined, ConnID: s.client.ID(), ClientID: s.clientID, Room: s.room})
	log.Debug("session joined")

	defer s.close(ctx)

	for {
		mt, data, err := s.client.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
				!s.client.IsClosed() {
				log.Debug("read failed", zap.Error(err))
			}
			return
		}

		msg, err := decodeMessage(mt, data)
		if err != nil {
			h.metrics.IncrementInvalidMessages()
			h.events.Publish(Event{Type: EventMessageInvalid, ConnID: s.client.ID(), ClientID: s.clientID, Room: s.room, Err: err})
			log.Info("invalid message", zap.Error(err), zap.String("policy", string(h.config.MalformedPolicy)))
			if h.config.MalformedPolicy == PolicyDrop {
				continue
			}
			return
		}

		msg["id"] = s.clientID
		h.relay.Broadcast(ctx, msg, s.room, s.client)
	}
}

// close 离开房间、广播断开通知并关闭连接，只执行一次
func (s *Session) close(ctx context.Context) {
	s.closeOnce.Do(func() {
		h := s.hub
		if h.registry.Leave(s.client, s.room) {
			h.metrics.IncrementRoomsDestroyed()
			h.events.Publish(Event{Type: EventRoomDestroyed, Room: s.room})
		}
		h.metrics.SetRoomCount(h.registry.RoomCount())
		s.state.Store(int32(StateClosed))

		// 连接已不在房间内，此处的 sender 排除不会影响投递结果
		h.relay.Broadcast(context.WithoutCancel(ctx), Message{"id": s.clientID, "type": DisconnectType}, s.room, s.client)

		s.client.Close()
		h.events.Publish(Event{Type: EventSessionClosed, ConnID: s.client.ID(), ClientID: s.clientID, Room: s.room})
	})
}

// decodeMessage 解析一帧，只接受 JSON 对象文本帧
func decodeMessage(messageType int, data []byte) (Message, error) {
	if messageType != websocket.TextMessage {
		return nil, ErrBinaryFrame
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		if json.Valid(trimmed) {
			return nil, ErrNotJSONObject
		}
		return nil, ErrInvalidMessage
	}
	var msg Message
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, errors.Join(ErrInvalidMessage, err)
	}
	return msg, nil
}
