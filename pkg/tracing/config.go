package tracing

import (
	"errors"
	"fmt"
	"time"
)

// 导出器类型
const (
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterNoop     = "noop"
)

// ErrInvalidConfig 配置错误
var ErrInvalidConfig = errors.New("tracing: invalid config")

// Config 链路追踪配置
type Config struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`

	Exporter string            `mapstructure:"exporter"` // stdout, otlp-http, otlp-grpc, noop
	Endpoint string            `mapstructure:"endpoint"` // host:port，为空时读取 OTEL_EXPORTER_OTLP_ENDPOINT
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`

	// SampleRate 根 span 采样率，子 span 跟随父 span
	SampleRate float64 `mapstructure:"sample_rate"`

	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "reviewhub",
		ServiceVersion: "dev",
		Environment:    "development",
		Exporter:       ExporterStdout,
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("%w: service name is required", ErrInvalidConfig)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("%w: sample rate must be within [0, 1], got %v", ErrInvalidConfig, c.SampleRate)
	}
	switch c.Exporter {
	case ExporterStdout, ExporterOTLPHTTP, ExporterOTLPGRPC, ExporterNoop:
	default:
		return fmt.Errorf("%w: unknown exporter %q", ErrInvalidConfig, c.Exporter)
	}
	return nil
}
