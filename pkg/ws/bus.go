package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// Envelope 跨实例转发的广播
type Envelope struct {
	Origin  string          `json:"origin"` // 发布实例 ID
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// Bus 跨实例广播总线
// 同一房间的成员可能分布在多个实例上，本地投递完成后由 Relay 发布到 Bus，
// 其他实例收到后投递给各自的本地成员。
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe 阻塞直到 ctx 取消或订阅失败
	Subscribe(ctx context.Context, handle func(Envelope)) error
	Close() error
}

// BreakerBus 为 Publish 增加熔断，总线故障时快速失败而不拖慢广播
type BreakerBus struct {
	Bus
	cb *gobreaker.CircuitBreaker
}

// BreakerSettings 熔断配置
type BreakerSettings struct {
	Name             string
	MaxFailures      uint32        // 连续失败次数达到后打开
	OpenTimeout      time.Duration // 打开状态持续时间
	HalfOpenRequests uint32        // 半开状态允许的试探请求数
	OnStateChange    func(name string, from, to gobreaker.State)
}

// NewBreakerBus 包装 Bus
func NewBreakerBus(bus Bus, s BreakerSettings) *BreakerBus {
	if s.Name == "" {
		s.Name = "relay-bus"
	}
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if s.HalfOpenRequests == 0 {
		s.HalfOpenRequests = 1
	}
	maxFailures := s.MaxFailures
	return &BreakerBus{
		Bus: bus,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        s.Name,
			MaxRequests: s.HalfOpenRequests,
			Timeout:     s.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: s.OnStateChange,
		}),
	}
}

// Publish 经熔断器发布
func (b *BreakerBus) Publish(ctx context.Context, env Envelope) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.Bus.Publish(ctx, env)
	})
	return err
}

// State 当前熔断状态
func (b *BreakerBus) State() gobreaker.State {
	return b.cb.State()
}

func encodeEnvelope(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	if env.Room == "" || len(env.Payload) == 0 {
		return Envelope{}, ErrInvalidMessage
	}
	return env, nil
}
