package orm

import (
	"fmt"
	"time"
)

// DBType 数据库类型
type DBType string

const (
	MySQL      DBType = "mysql"
	PostgreSQL DBType = "postgres"
	SQLite     DBType = "sqlite"
	SQLServer  DBType = "sqlserver"
)

// Config 数据库配置
type Config struct {
	Type DBType `mapstructure:"type"` // mysql, postgres, sqlite, sqlserver
	DSN  string `mapstructure:"dsn"`

	// 连接池
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`

	PrepareStmt bool   `mapstructure:"prepare_stmt"`
	TablePrefix string `mapstructure:"table_prefix"`

	// 日志
	LogLevel      string        `mapstructure:"log_level"` // silent, error, warn, info
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`

	// Tracing 为每条 SQL 创建 span
	Tracing bool `mapstructure:"tracing"`

	// 读写分离（可选）
	Replicas      []string `mapstructure:"replicas"`       // 从库 DSN
	ReplicaPolicy string   `mapstructure:"replica_policy"` // random, round_robin
}

// DefaultConfig 默认配置（本地 SQLite 文件）
func DefaultConfig() *Config {
	return &Config{
		Type:            SQLite,
		DSN:             "reviews.db",
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		PrepareStmt:     true,
		LogLevel:        "warn",
		SlowThreshold:   200 * time.Millisecond,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	switch c.Type {
	case MySQL, PostgreSQL, SQLite, SQLServer:
	default:
		return fmt.Errorf("orm: unsupported database type %q", c.Type)
	}
	if c.DSN == "" {
		return fmt.Errorf("orm: dsn is required")
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("orm: pool sizes must not be negative")
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.ReplicaPolicy {
	case "", "random", "round_robin":
	default:
		return fmt.Errorf("orm: unknown replica policy %q", c.ReplicaPolicy)
	}
	return nil
}
