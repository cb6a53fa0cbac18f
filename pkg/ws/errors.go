package ws

import "errors"

// 错误定义
var (
	// 连接相关错误
	ErrTooManyConnections = errors.New("ws: too many connections")
	ErrConnectionClosed   = errors.New("ws: connection closed")
	ErrHubClosed          = errors.New("ws: hub closed")
	ErrEmptyClientID      = errors.New("ws: empty client id")

	// 投递相关错误
	ErrQueueFull     = errors.New("ws: send queue full")
	ErrSendTimeout   = errors.New("ws: send timeout")
	ErrDeliveryPanic = errors.New("ws: delivery panicked")

	// 消息相关错误
	ErrInvalidMessage  = errors.New("ws: invalid message")
	ErrBinaryFrame     = errors.New("ws: binary frames are not supported")
	ErrNotJSONObject   = errors.New("ws: payload is not a json object")
	ErrMessageTooLarge = errors.New("ws: message too large")

	// 配置相关错误
	ErrInvalidConfig = errors.New("ws: invalid config")
)
