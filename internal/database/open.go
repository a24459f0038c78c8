package database

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	cgosqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// =============================================================================
// 🔌 连接建立
// =============================================================================

// 支持的驱动名
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"  // 纯 Go 实现（glebarez/sqlite）
	DriverSQLite3  = "sqlite3" // cgo 实现（mattn/go-sqlite3）
)

// OpenConfig 连接参数
type OpenConfig struct {
	Driver            string
	DSN               string
	ConnectRetries    int
	ConnectRetryDelay time.Duration
	SlowThreshold     time.Duration
}

// Dialector 按驱动名构造 GORM 方言
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverPostgres:
		return postgres.Open(dsn), nil
	case DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	case DriverSQLite3:
		return cgosqlite.Open(dsn), nil
	case "":
		return nil, fmt.Errorf("database driver not configured")
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: postgres, mysql, sqlite, sqlite3)", driver)
	}
}

// Open 打开数据库并确认可用。按固定间隔最多尝试 ConnectRetries 次，
// 全部失败时返回错误，服务无法在没有持久化存储的情况下运行。
func Open(ctx context.Context, cfg OpenConfig, logger *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.ConnectRetries <= 0 {
		cfg.ConnectRetries = 1
	}

	gormCfg := &gorm.Config{
		Logger:         newGormLogger(logger, cfg.SlowThreshold),
		TranslateError: true,
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.ConnectRetries; attempt++ {
		db, err := connect(ctx, dialector, gormCfg)
		if err == nil {
			logger.Info("database connected",
				zap.String("driver", cfg.Driver),
				zap.Int("attempt", attempt),
			)
			return db, nil
		}
		lastErr = err

		logger.Warn("database connection attempt failed",
			zap.String("driver", cfg.Driver),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.ConnectRetries),
			zap.Error(err),
		)
		if attempt == cfg.ConnectRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to connect database: %w", ctx.Err())
		case <-time.After(cfg.ConnectRetryDelay):
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d attempts: %w", cfg.ConnectRetries, lastErr)
}

func connect(ctx context.Context, dialector gorm.Dialector, gormCfg *gorm.Config) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// newGormLogger 把 GORM 日志导入 zap，仅输出告警与慢查询
func newGormLogger(logger *zap.Logger, slow time.Duration) gormlogger.Interface {
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}
	std := zap.NewStdLog(logger.With(zap.String("component", "gorm")))
	return gormlogger.New(std, gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}
