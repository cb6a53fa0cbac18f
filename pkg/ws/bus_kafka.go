package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
)

// KafkaBus 基于 Kafka topic 的跨实例总线
// 每个实例直接消费全部分区（不加入消费组），从最新 offset 开始，保证所有实例都能收到每条广播
type KafkaBus struct {
	topic    string
	producer sarama.SyncProducer
	consumer sarama.Consumer
}

// DialKafkaBus 创建生产者与消费者
func DialKafkaBus(brokers []string, topic string) (*KafkaBus, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("%w: kafka brokers required", ErrInvalidConfig)
	}
	if topic == "" {
		topic = "reviewhub.relay"
	}

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Consumer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	consumer, err := sarama.NewConsumer(brokers, cfg)
	if err != nil {
		_ = producer.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return &KafkaBus{topic: topic, producer: producer, consumer: consumer}, nil
}

// Publish 以房间为 key 发布，同一房间落在同一分区以保持顺序
func (b *KafkaBus) Publish(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	_, _, err = b.producer.SendMessage(&sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.StringEncoder(env.Room),
		Value: sarama.ByteEncoder(data),
	})
	return err
}

// Subscribe 消费 topic 的全部分区
func (b *KafkaBus) Subscribe(ctx context.Context, handle func(Envelope)) error {
	partitions, err := b.consumer.Partitions(b.topic)
	if err != nil {
		return fmt.Errorf("kafka partitions: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for _, p := range partitions {
		pc, err := b.consumer.ConsumePartition(b.topic, p, sarama.OffsetNewest)
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("kafka consume partition %d: %w", p, err)
		}
		wg.Add(1)
		go func(pc sarama.PartitionConsumer) {
			defer wg.Done()
			defer pc.AsyncClose()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-pc.Messages():
					if !ok {
						return
					}
					env, err := decodeEnvelope(msg.Value)
					if err != nil {
						continue
					}
					handle(env)
				case cerr, ok := <-pc.Errors():
					if !ok {
						return
					}
					errOnce.Do(func() { firstErr = cerr })
					cancel()
					return
				}
			}
		}(pc)
	}
	wg.Wait()

	if firstErr != nil && !errors.Is(firstErr, context.Canceled) {
		return firstErr
	}
	return nil
}

// Close 关闭生产者与消费者
func (b *KafkaBus) Close() error {
	return errors.Join(b.producer.Close(), b.consumer.Close())
}
