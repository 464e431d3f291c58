// Package db 提供定价历史库的 GORM 连接、连接池配置与日志适配
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	driver "github.com/go-sql-driver/mysql"
	pkgLogger "github.com/wyfcoding/optionpricer/pkg/logger"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const pingTimeout = 5 * time.Second

// Config 数据库配置
type Config struct {
	Driver             string
	DSN                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    int
	LogEnabled         bool
	SlowQueryThreshold int
}

// DB 数据库实例包装
type DB struct {
	*gorm.DB
}

// normalizeDSN 校验 MySQL DSN，并强制 UTC 与 parseTime
// 返回的地址与库名用于日志，不含密码
func normalizeDSN(dsn string) (string, *driver.Config, error) {
	mc, err := driver.ParseDSN(dsn)
	if err != nil {
		return "", nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	if mc.DBName == "" {
		return "", nil, errors.New("invalid mysql dsn: database name is required")
	}
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc.FormatDSN(), mc, nil
}

// Init 连接定价历史库，ctx 控制首次 ping 的等待时间
func Init(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.Driver != "mysql" {
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	dsn, mc, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: NewGormLogger(cfg.LogEnabled, time.Duration(cfg.SlowQueryThreshold)*time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s/%s: %w", mc.Addr, mc.DBName, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping %s/%s: %w", mc.Addr, mc.DBName, err)
	}

	pkgLogger.Info(ctx, "Pricing history database connected", "addr", mc.Addr, "database", mc.DBName, "max_open_conns", cfg.MaxOpenConns)
	return &DB{DB: gdb}, nil
}

// Close 关闭数据库连接
func (d *DB) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GormLogger 将 GORM 日志转发到 pkg/logger
type GormLogger struct {
	enabled            bool
	slowQueryThreshold time.Duration
}

func NewGormLogger(enabled bool, slowQueryThreshold time.Duration) *GormLogger {
	return &GormLogger{enabled: enabled, slowQueryThreshold: slowQueryThreshold}
}

// LogMode 级别由 pkg/logger 统一控制
func (l *GormLogger) LogMode(logger.LogLevel) logger.Interface {
	return l
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.enabled {
		pkgLogger.Info(ctx, msg, "data", data)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	pkgLogger.Warn(ctx, msg, "data", data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	pkgLogger.Error(ctx, msg, "data", data)
}

// traceLevel 决定一条 SQL 的日志级别，ok 为 false 时不输出
// 未命中记录是查询最新结果时的正常情况，不算失败
func (l *GormLogger) traceLevel(elapsed time.Duration, err error) (level slog.Level, ok bool) {
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return slog.LevelError, true
	case l.slowQueryThreshold > 0 && elapsed > l.slowQueryThreshold:
		return slog.LevelWarn, true
	case l.enabled:
		return slog.LevelDebug, true
	default:
		return 0, false
	}
}

// Trace 记录 SQL 执行日志，慢查询与失败始终输出
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	level, ok := l.traceLevel(elapsed, err)
	if !ok {
		return
	}

	sqlStr, rows := fc()
	args := []any{"duration_ms", elapsed.Milliseconds(), "rows", rows, "sql", sqlStr}
	switch level {
	case slog.LevelError:
		pkgLogger.Error(ctx, "SQL execution failed", append(args, "error", err)...)
	case slog.LevelWarn:
		pkgLogger.Warn(ctx, "Slow query detected", args...)
	default:
		pkgLogger.Debug(ctx, "SQL executed", args...)
	}
}
