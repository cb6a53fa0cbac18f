package ws

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisBus 基于 Redis Pub/Sub 的跨实例总线
// 每个房间一个 channel：<prefix><room>，订阅端使用 PSUBSCRIBE <prefix>*
type RedisBus struct {
	rdb    redis.UniversalClient
	prefix string
	owned  bool
}

// NewRedisBus 使用已有客户端创建总线，Close 不会关闭该客户端
func NewRedisBus(rdb redis.UniversalClient, prefix string) *RedisBus {
	if prefix == "" {
		prefix = "reviewhub:room:"
	}
	return &RedisBus{rdb: rdb, prefix: prefix}
}

// DialRedisBus 连接 Redis 并校验连通性
func DialRedisBus(ctx context.Context, addr, password string, db int, prefix string) (*RedisBus, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	bus := NewRedisBus(rdb, prefix)
	bus.owned = true
	return bus, nil
}

// Publish 发布到房间 channel
func (b *RedisBus) Publish(ctx context.Context, env Envelope) error {
	data, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.prefix+env.Room, data).Err()
}

// Subscribe 订阅所有房间 channel
func (b *RedisBus) Subscribe(ctx context.Context, handle func(Envelope)) error {
	pubsub := b.rdb.PSubscribe(ctx, b.prefix+"*")
	defer pubsub.Close()

	// 等待订阅确认，连接失败时直接返回
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			env, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				continue
			}
			if env.Room != strings.TrimPrefix(msg.Channel, b.prefix) {
				continue
			}
			handle(env)
		}
	}
}

// Close 关闭自行创建的客户端
func (b *RedisBus) Close() error {
	if b.owned {
		return b.rdb.Close()
	}
	return nil
}
