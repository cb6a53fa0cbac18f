package ws

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPBus 基于 RabbitMQ fanout exchange 的跨实例总线
// 每个实例声明一个独占、自动删除的匿名队列绑定到 exchange
type AMQPBus struct {
	conn     *amqp.Connection
	exchange string

	mu  sync.Mutex // amqp.Channel 不支持并发发布
	pub *amqp.Channel
}

// DialAMQPBus 连接 RabbitMQ 并声明 exchange
func DialAMQPBus(url, exchange string) (*AMQPBus, error) {
	if exchange == "" {
		exchange = "reviewhub.relay"
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp exchange declare: %w", err)
	}
	return &AMQPBus{conn: conn, exchange: exchange, pub: ch}, nil
}

// Publish 发布到 fanout exchange
func (b *AMQPBus) Publish(ctx context.Context, env Envelope) error {
	data, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pub.PublishWithContext(ctx, b.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Body:         data,
	})
}

// Subscribe 声明实例队列并消费
func (b *AMQPBus) Subscribe(ctx context.Context, handle func(Envelope)) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("amqp queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", b.exchange, false, nil); err != nil {
		return fmt.Errorf("amqp queue bind: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return amqp.ErrClosed
			}
			env, err := decodeEnvelope(d.Body)
			if err != nil {
				continue
			}
			handle(env)
		}
	}
}

// Close 关闭连接
func (b *AMQPBus) Close() error {
	return b.conn.Close()
}
