package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics 定时任务指标
type JobMetrics struct {
	Runs     *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	LastRun  *prometheus.GaugeVec
}

// NewJobMetrics 创建并注册定时任务指标
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	m := &JobMetrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "runs_total",
			Help:      "Total number of scheduled job runs by result.",
		}, []string{"job", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "duration_seconds",
			Help:      "Duration of scheduled job runs in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		LastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished run.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.Runs, m.Duration, m.LastRun)
	return m
}

// ObserveJob 记录一次执行
func (m *JobMetrics) ObserveJob(name string, d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.Runs.WithLabelValues(name, result).Inc()
	m.Duration.WithLabelValues(name).Observe(d.Seconds())
	m.LastRun.WithLabelValues(name).SetToCurrentTime()
}
