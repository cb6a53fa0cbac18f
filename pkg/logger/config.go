package logger

import "go.uber.org/zap/zapcore"

// Format 日志格式
type Format string

const (
	// JSONFormat JSON 格式
	JSONFormat Format = "json"
	// ConsoleFormat 控制台格式
	ConsoleFormat Format = "console"
)

// IsValid 检查格式是否有效
func (f Format) IsValid() bool {
	return f == JSONFormat || f == ConsoleFormat
}

// Config 日志配置
type Config struct {
	Level  Level  // 日志级别（默认 InfoLevel）
	Format Format // 日志格式（默认 json）

	Console bool          // 输出到控制台
	File    string        // 输出文件路径（空则不输出）
	Rotate  *RotateConfig // 轮转输出（nil 则不轮转）

	Sampling *SamplingConfig // 采样配置（nil 则不采样）

	EnableCaller     bool // 记录调用位置
	EnableStacktrace bool // Error 及以上记录堆栈

	EncoderConfig *zapcore.EncoderConfig // 自定义 Encoder
}

// RotateConfig 文件轮转配置
type RotateConfig struct {
	Filename   string `mapstructure:"filename"`    // 日志文件路径
	MaxSize    int    `mapstructure:"max_size"`    // 单文件最大 MB（默认 100）
	MaxAge     int    `mapstructure:"max_age"`     // 保留天数（默认 30）
	MaxBackups int    `mapstructure:"max_backups"` // 保留文件数（默认 10）
	Compress   bool   `mapstructure:"compress"`    // 是否压缩
}

// SamplingConfig 采样配置
type SamplingConfig struct {
	Initial    int // 每秒前 N 条必定记录
	Thereafter int // 之后每 M 条记录 1 条
}

func (c *Config) setDefaults() {
	if !c.Format.IsValid() {
		c.Format = JSONFormat
	}
	if !c.Console && c.File == "" && c.Rotate == nil {
		c.Console = true
	}
	if c.Rotate != nil {
		if c.Rotate.MaxSize == 0 {
			c.Rotate.MaxSize = 100
		}
		if c.Rotate.MaxAge == 0 {
			c.Rotate.MaxAge = 30
		}
		if c.Rotate.MaxBackups == 0 {
			c.Rotate.MaxBackups = 10
		}
	}
	if c.Sampling != nil {
		if c.Sampling.Initial == 0 {
			c.Sampling.Initial = 100
		}
		if c.Sampling.Thereafter == 0 {
			c.Sampling.Thereafter = 100
		}
	}
}
