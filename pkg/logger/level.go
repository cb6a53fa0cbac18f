package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Level 日志级别
type Level int8

const (
	DebugLevel Level = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
	DPanicLevel
	PanicLevel
	FatalLevel
)

// String 返回级别名称
func (l Level) String() string {
	return zapcore.Level(l).String()
}

// ParseLevel 解析级别名称，空字符串返回 InfoLevel
func ParseLevel(s string) (Level, error) {
	if strings.TrimSpace(s) == "" {
		return InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return InfoLevel, fmt.Errorf("logger: unknown level %q", s)
	}
	return Level(lvl), nil
}

func (l Level) toZapLevel() zapcore.Level {
	return zapcore.Level(l)
}
