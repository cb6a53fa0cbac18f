package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tokmz/reviewhub/pkg/logger"
)

type countingMetrics struct {
	NoopMetrics
	mu        sync.Mutex
	dropped   map[string]int
	delivered int
	busErrors map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{dropped: map[string]int{}, busErrors: map[string]int{}}
}

func (m *countingMetrics) IncrementDroppedMessages(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[reason]++
}

func (m *countingMetrics) IncrementDelivered(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered += n
}

func (m *countingMetrics) IncrementBusErrors(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busErrors[op]++
}

func TestRelayBroadcastExcludesSender(t *testing.T) {
	r := NewRegistry()
	a, b, c := newFakeConn("a"), newFakeConn("b"), newFakeConn("c")
	for _, conn := range []*fakeConn{a, b, c} {
		r.Join(conn, "/blog/1")
	}
	other := newFakeConn("other")
	r.Join(other, "/blog/2")

	relay := NewRelay(r)
	n := relay.Broadcast(context.Background(), Message{"id": "a", "text": "hi"}, "/blog/1", a)

	assert.Equal(t, 2, n)
	assert.Empty(t, a.received())
	assert.Equal(t, []string{`{"id":"a","text":"hi"}`}, b.received())
	assert.Equal(t, []string{`{"id":"a","text":"hi"}`}, c.received())
	assert.Empty(t, other.received())
}

func TestRelayBroadcastNilSender(t *testing.T) {
	r := NewRegistry()
	a, b := newFakeConn("a"), newFakeConn("b")
	r.Join(a, "/r")
	r.Join(b, "/r")

	n := NewRelay(r).Broadcast(context.Background(), Message{"type": "notice"}, "/r", nil)
	assert.Equal(t, 2, n)
}

func TestRelayBroadcastEmptyRoom(t *testing.T) {
	relay := NewRelay(NewRegistry())
	assert.Zero(t, relay.Broadcast(context.Background(), Message{"x": 1}, "/nobody", nil))
}

func TestRelayFailureIsolation(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			r := NewRegistry()
			good1, bad, panicky, good2 := newFakeConn("g1"), newFakeConn("bad"), newFakeConn("panic"), newFakeConn("g2")
			bad.err = ErrQueueFull
			panicky.pan = true
			for _, c := range []*fakeConn{good1, bad, panicky, good2} {
				r.Join(c, "/r")
			}

			core, logs := observer.New(zap.WarnLevel)
			metrics := newCountingMetrics()
			relay := NewRelay(r,
				WithRelayLogger(logger.FromZap(zap.New(core))),
				WithRelayMetrics(metrics),
				WithRelayWorkers(workers),
			)

			n := relay.Broadcast(context.Background(), Message{"k": "v"}, "/r", nil)

			assert.Equal(t, 2, n)
			assert.Len(t, good1.received(), 1)
			assert.Len(t, good2.received(), 1)
			assert.Equal(t, 1, metrics.dropped["queue_full"])
			assert.Equal(t, 1, metrics.dropped["panic"])
			assert.Equal(t, 2, metrics.delivered)
			assert.Equal(t, 2, logs.FilterMessage("delivery failed").Len())
		})
	}
}

func TestRelayDeliveryFailedEvent(t *testing.T) {
	r := NewRegistry()
	bad := newFakeConn("bad")
	bad.err = ErrConnectionClosed
	r.Join(bad, "/r")

	eb := NewEventBus(1, 8)
	defer eb.Close()
	got := make(chan Event, 1)
	eb.Subscribe(EventDeliveryFailed, func(e Event) { got <- e })

	NewRelay(r, WithRelayEvents(eb)).Broadcast(context.Background(), Message{"k": 1}, "/r", nil)

	select {
	case e := <-got:
		assert.Equal(t, "bad", e.ConnID)
		assert.Equal(t, "/r", e.Room)
		assert.ErrorIs(t, e.Err, ErrConnectionClosed)
	case <-time.After(time.Second):
		t.Fatal("delivery.failed not published")
	}
}

func TestRelayEncodeFailure(t *testing.T) {
	r := NewRegistry()
	a := newFakeConn("a")
	r.Join(a, "/r")

	metrics := newCountingMetrics()
	n := NewRelay(r, WithRelayMetrics(metrics)).Broadcast(context.Background(), Message{"bad": make(chan int)}, "/r", nil)

	assert.Zero(t, n)
	assert.Empty(t, a.received())
	assert.Equal(t, 1, metrics.dropped["encode"])
}

func TestDropReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrQueueFull, "queue_full"},
		{ErrSendTimeout, "timeout"},
		{context.DeadlineExceeded, "timeout"},
		{ErrConnectionClosed, "closed"},
		{ErrDeliveryPanic, "panic"},
		{errors.New("other"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dropReason(tt.err), tt.err.Error())
	}
}

// memoryBus 进程内总线，多个 Relay 共享一个实例模拟多实例部署
type memoryBus struct {
	mu       sync.Mutex
	subs     []chan Envelope
	failWith error
	closed   bool
}

func (b *memoryBus) Publish(_ context.Context, env Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWith != nil {
		return b.failWith
	}
	for _, ch := range b.subs {
		ch <- env
	}
	return nil
}

func (b *memoryBus) Subscribe(ctx context.Context, handle func(Envelope)) error {
	ch := make(chan Envelope, 64)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-ch:
			handle(env)
		}
	}
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *memoryBus) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func TestRelayCrossInstance(t *testing.T) {
	bus := &memoryBus{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	regA, regB := NewRegistry(), NewRegistry()
	relayA := NewRelay(regA, WithRelayBus(bus, "instance-a"))
	relayB := NewRelay(regB, WithRelayBus(bus, "instance-b"))
	go relayA.Run(ctx)
	go relayB.Run(ctx)
	require.Eventually(t, func() bool { return bus.subscribers() == 2 }, time.Second, 5*time.Millisecond)

	sender, localPeer := newFakeConn("sender"), newFakeConn("local")
	remotePeer := newFakeConn("remote")
	regA.Join(sender, "/r")
	regA.Join(localPeer, "/r")
	regB.Join(remotePeer, "/r")

	relayA.Broadcast(ctx, Message{"id": "u1"}, "/r", sender)

	require.Eventually(t, func() bool { return len(remotePeer.received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, `{"id":"u1"}`, remotePeer.received()[0])
	assert.Len(t, localPeer.received(), 1, "own envelopes are not delivered twice")
	assert.Empty(t, sender.received())
}

func TestRelayBusPublishFailure(t *testing.T) {
	bus := &memoryBus{failWith: errors.New("bus down")}
	r := NewRegistry()
	a := newFakeConn("a")
	r.Join(a, "/r")

	metrics := newCountingMetrics()
	n := NewRelay(r, WithRelayBus(bus, "x"), WithRelayMetrics(metrics)).
		Broadcast(context.Background(), Message{"k": 1}, "/r", nil)

	assert.Equal(t, 1, n, "local delivery is unaffected by bus failure")
	assert.Equal(t, 1, metrics.busErrors["publish"])
}
