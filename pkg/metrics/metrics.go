// Package metrics 提供 Prometheus 指标，实现 ws.Metrics 并记录 HTTP 请求。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tokmz/reviewhub/pkg/ws"
)

const namespace = "reviewhub"

// RelayMetrics WebSocket 中继指标
type RelayMetrics struct {
	ConnectionsCurrent  prometheus.Gauge
	ConnectionsTotal    prometheus.Counter
	ConnectionsRejected prometheus.Counter
	Rooms               prometheus.Gauge
	RoomsCreated        prometheus.Counter
	RoomsDestroyed      prometheus.Counter
	Broadcasts          prometheus.Counter
	Delivered           prometheus.Counter
	Dropped             *prometheus.CounterVec
	InvalidMessages     prometheus.Counter
	BroadcastDuration   prometheus.Histogram
	BusErrors           *prometheus.CounterVec
}

var _ ws.Metrics = (*RelayMetrics)(nil)

// NewRelayMetrics 创建并注册中继指标
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		ConnectionsCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "connections_current",
			Help:      "Number of open WebSocket sessions.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "connections_total",
			Help:      "Total number of accepted WebSocket sessions.",
		}),
		ConnectionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "connections_rejected_total",
			Help:      "Total number of handshakes rejected by the connection limit.",
		}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "rooms",
			Help:      "Number of non-empty rooms.",
		}),
		RoomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "rooms_created_total",
			Help:      "Total number of rooms created.",
		}),
		RoomsDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "rooms_destroyed_total",
			Help:      "Total number of rooms destroyed.",
		}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "broadcasts_total",
			Help:      "Total number of room broadcasts.",
		}),
		Delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "delivered_total",
			Help:      "Total number of messages delivered to recipients.",
		}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "dropped_total",
			Help:      "Total number of per-recipient deliveries that failed.",
		}, []string{"reason"}),
		InvalidMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "invalid_messages_total",
			Help:      "Total number of malformed client frames.",
		}),
		BroadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "broadcast_duration_seconds",
			Help:      "Time spent delivering one broadcast to local recipients.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		BusErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "bus_errors_total",
			Help:      "Total number of cross-instance bus failures.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.ConnectionsCurrent, m.ConnectionsTotal, m.ConnectionsRejected,
		m.Rooms, m.RoomsCreated, m.RoomsDestroyed,
		m.Broadcasts, m.Delivered, m.Dropped, m.InvalidMessages,
		m.BroadcastDuration, m.BusErrors,
	)
	return m
}

func (m *RelayMetrics) IncrementConnections() {
	m.ConnectionsCurrent.Inc()
	m.ConnectionsTotal.Inc()
}

func (m *RelayMetrics) DecrementConnections()         { m.ConnectionsCurrent.Dec() }
func (m *RelayMetrics) IncrementRejectedConnections() { m.ConnectionsRejected.Inc() }
func (m *RelayMetrics) SetRoomCount(count int)        { m.Rooms.Set(float64(count)) }
func (m *RelayMetrics) IncrementRoomsCreated()        { m.RoomsCreated.Inc() }
func (m *RelayMetrics) IncrementRoomsDestroyed()      { m.RoomsDestroyed.Inc() }
func (m *RelayMetrics) IncrementBroadcasts()          { m.Broadcasts.Inc() }
func (m *RelayMetrics) IncrementInvalidMessages()     { m.InvalidMessages.Inc() }

func (m *RelayMetrics) IncrementDelivered(n int) {
	if n > 0 {
		m.Delivered.Add(float64(n))
	}
}

func (m *RelayMetrics) IncrementDroppedMessages(reason string) {
	m.Dropped.WithLabelValues(reason).Inc()
}

func (m *RelayMetrics) RecordBroadcastLatency(d time.Duration) {
	m.BroadcastDuration.Observe(d.Seconds())
}

func (m *RelayMetrics) IncrementBusErrors(op string) {
	m.BusErrors.WithLabelValues(op).Inc()
}
