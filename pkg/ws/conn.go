package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client gorilla websocket 连接
// 出站消息经缓冲队列由 writePump 串行写出；队列在连接关闭后不再接收，但从不 close。
type Client struct {
	id   string
	conn *websocket.Conn

	send chan []byte
	done chan struct{}

	sendTimeout time.Duration
	writeWait   time.Duration
	pingPeriod  time.Duration
	pongWait    time.Duration

	closed    atomic.Bool
	closeOnce sync.Once
	writeDone chan struct{}
}

func newClient(conn *websocket.Conn, cfg *Config) *Client {
	c := &Client{
		id:          uuid.NewString(),
		conn:        conn,
		send:        make(chan []byte, cfg.SendQueueSize),
		done:        make(chan struct{}),
		sendTimeout: cfg.SendTimeout,
		writeWait:   cfg.WriteWait,
		pingPeriod:  cfg.HeartbeatInterval,
		pongWait:    cfg.HeartbeatTimeout,
		writeDone:   make(chan struct{}),
	}

	conn.SetReadLimit(cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(c.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})
	return c
}

// ID 连接唯一标识
func (c *Client) ID() string {
	return c.id
}

// Send 投递消息
// 队列有空位时立即入队；队列满时 SendTimeout 为 0 则返回 ErrQueueFull，
// 否则最多等待 SendTimeout。
func (c *Client) Send(ctx context.Context, data []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	if c.sendTimeout <= 0 {
		return ErrQueueFull
	}

	timer := time.NewTimer(c.sendTimeout)
	defer timer.Stop()
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrSendTimeout
	}
}

// ReadMessage 读取一帧，读超时由 pong 顺延
func (c *Client) ReadMessage() (int, []byte, error) {
	return c.conn.ReadMessage()
}

// writePump 写出队列消息并定时 ping
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		close(c.writeDone)
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// Close 关闭连接，可重复调用
// 阻塞中的 ReadMessage 会立即返回错误
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeWait))
		close(c.done)
		_ = c.conn.Close()
	})
}

// IsClosed 是否已关闭
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}

// RemoteAddr 远程地址
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
