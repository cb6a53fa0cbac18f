package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

func skipIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

// assertRoundTrip 订阅建立是异步的，反复发布直到订阅端收到
func assertRoundTrip(t *testing.T, bus Bus) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Envelope, 16)
	subErr := make(chan error, 1)
	go func() {
		subErr <- bus.Subscribe(ctx, func(env Envelope) {
			select {
			case got <- env:
			default:
			}
		})
	}()

	env := Envelope{Origin: "instance-a", Room: "/blog/1", Payload: json.RawMessage(`{"id":"u1","type":"cursor"}`)}
	var received Envelope
	require.Eventually(t, func() bool {
		if err := bus.Publish(ctx, env); err != nil {
			return false
		}
		select {
		case received = <-got:
			return true
		case <-time.After(200 * time.Millisecond):
			return false
		}
	}, 60*time.Second, 50*time.Millisecond)

	assert.Equal(t, env.Origin, received.Origin)
	assert.Equal(t, env.Room, received.Room)
	assert.JSONEq(t, string(env.Payload), string(received.Payload))

	cancel()
	select {
	case err := <-subErr:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("subscriber did not stop after cancel")
	}
}

func TestAMQPBusIntegration(t *testing.T) {
	skipIntegration(t)

	ctx := context.Background()
	container, err := tcrabbitmq.Run(ctx, "rabbitmq:3.12.11-management-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.AmqpURL(ctx)
	require.NoError(t, err)

	bus, err := DialAMQPBus(url, "reviewhub.test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	assertRoundTrip(t, bus)
}

func TestKafkaBusIntegration(t *testing.T) {
	skipIntegration(t)

	ctx := context.Background()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("reviewhub-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	bus, err := DialKafkaBus(brokers, "reviewhub.test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	// 首次发布触发 topic 自动创建，订阅前分区必须存在
	require.Eventually(t, func() bool {
		return bus.Publish(ctx, Envelope{Origin: "warmup", Room: "/warmup", Payload: json.RawMessage(`{}`)}) == nil
	}, 30*time.Second, 200*time.Millisecond)

	assertRoundTrip(t, bus)
}

func TestDialKafkaBusRequiresBrokers(t *testing.T) {
	_, err := DialKafkaBus(nil, "")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
