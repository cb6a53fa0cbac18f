// Package orm 打开 GORM 连接：驱动选择、连接池、读写分离、zap 日志与链路追踪。
package orm

import (
	"context"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"

	"github.com/tokmz/reviewhub/pkg/logger"
)

// Open 创建 GORM 数据库实例，log 为 nil 时不输出 SQL 日志
func Open(cfg *Config, log logger.Logger) (*gorm.DB, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	level, _ := parseLogLevel(cfg.LogLevel)

	dialector, err := dialectorFor(cfg.Type, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		PrepareStmt: cfg.PrepareStmt,
		Logger:      NewGormLogger(log.Named("gorm"), level, cfg.SlowThreshold),
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: cfg.TablePrefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("orm: connect %s: %w", cfg.Type, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("orm: get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if len(cfg.Replicas) > 0 {
		if err := useReplicas(db, cfg); err != nil {
			return nil, fmt.Errorf("orm: setup replicas: %w", err)
		}
	}
	if cfg.Tracing {
		if err := db.Use(NewTracingPlugin(string(cfg.Type))); err != nil {
			return nil, fmt.Errorf("orm: register tracing: %w", err)
		}
	}
	return db, nil
}

// Close 关闭底层连接池
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping 检查主库连通性
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func dialectorFor(dbType DBType, dsn string) (gorm.Dialector, error) {
	switch dbType {
	case MySQL:
		return mysql.Open(dsn), nil
	case PostgreSQL:
		return postgres.Open(dsn), nil
	case SQLite:
		return sqlite.Open(dsn), nil
	case SQLServer:
		return sqlserver.Open(dsn), nil
	default:
		return nil, fmt.Errorf("orm: unsupported database type %q", dbType)
	}
}

// useReplicas 注册 dbresolver，读请求路由到从库
func useReplicas(db *gorm.DB, cfg *Config) error {
	replicas := make([]gorm.Dialector, 0, len(cfg.Replicas))
	for _, dsn := range cfg.Replicas {
		d, err := dialectorFor(cfg.Type, dsn)
		if err != nil {
			return err
		}
		replicas = append(replicas, d)
	}

	var policy dbresolver.Policy = dbresolver.RandomPolicy{}
	if cfg.ReplicaPolicy == "round_robin" {
		policy = dbresolver.RoundRobinPolicy()
	}

	resolver := dbresolver.Register(dbresolver.Config{Replicas: replicas, Policy: policy}).
		SetMaxIdleConns(cfg.MaxIdleConns).
		SetMaxOpenConns(cfg.MaxOpenConns).
		SetConnMaxLifetime(cfg.ConnMaxLifetime).
		SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	return db.Use(resolver)
}
