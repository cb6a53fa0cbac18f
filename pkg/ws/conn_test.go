package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upgradedConn 返回服务端一侧已升级的连接
func upgradedConn(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	conns := make(chan *websocket.Conn, 1)
	var up websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- c
	}))
	t.Cleanup(srv.Close)

	peer, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = peer.Close() })

	select {
	case c := <-conns:
		t.Cleanup(func() { _ = c.Close() })
		return c, peer
	case <-time.After(2 * time.Second):
		t.Fatal("upgrade timed out")
		return nil, nil
	}
}

func newTestClient(t *testing.T, sendTimeout time.Duration) (*Client, *websocket.Conn) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SendQueueSize = 1
	cfg.SendTimeout = sendTimeout
	conn, peer := upgradedConn(t)
	return newClient(conn, cfg), peer
}

func TestClientSendQueueFull(t *testing.T) {
	c, _ := newTestClient(t, 0)
	ctx := context.Background()

	require.NoError(t, c.Send(ctx, []byte(`{"n":1}`)))

	start := time.Now()
	err := c.Send(ctx, []byte(`{"n":2}`))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestClientSendTimeout(t *testing.T) {
	const timeout = 80 * time.Millisecond
	c, _ := newTestClient(t, timeout)
	ctx := context.Background()

	require.NoError(t, c.Send(ctx, []byte(`{"n":1}`)))

	start := time.Now()
	err := c.Send(ctx, []byte(`{"n":2}`))
	elapsed := time.Since(start)
	assert.ErrorIs(t, err, ErrSendTimeout)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, time.Second)
}

func TestClientSendContextCanceled(t *testing.T) {
	c, _ := newTestClient(t, time.Minute)

	require.NoError(t, c.Send(context.Background(), []byte(`{"n":1}`)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Send(ctx, []byte(`{"n":2}`)), context.Canceled)
}

func TestClientSendAfterClose(t *testing.T) {
	c, _ := newTestClient(t, time.Minute)

	c.Close()
	c.Close()

	assert.True(t, c.IsClosed())
	assert.ErrorIs(t, c.Send(context.Background(), []byte(`{}`)), ErrConnectionClosed)
}

func TestClientWritePumpDelivers(t *testing.T) {
	c, peer := newTestClient(t, 0)
	go c.writePump()
	t.Cleanup(c.Close)

	require.NoError(t, c.Send(context.Background(), []byte(`{"type":"hello"}`)))

	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, data, err := peer.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.JSONEq(t, `{"type":"hello"}`, string(data))
}
