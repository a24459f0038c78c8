package lifecycle

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/BaSui01/envsync/config"
	"github.com/BaSui01/envsync/internal/cache"
	"github.com/BaSui01/envsync/internal/database"
	"github.com/BaSui01/envsync/internal/metrics"
)

// =============================================================================
// 🔌 进程级资源
// =============================================================================

// Resources 持久化存储连接池与缓存连接，由进程显式持有并在关闭时各释放一次
type Resources struct {
	Pool  *database.PoolManager
	Cache *cache.Manager
}

// OpenResources 依次连接持久化存储与缓存，两者都有有限次数的固定间隔重试。
// 缓存连接失败时已打开的数据库会被关闭。
func OpenResources(ctx context.Context, cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (*Resources, error) {
	db, err := database.Open(ctx, database.OpenConfig{
		Driver:            cfg.Database.Driver,
		DSN:               cfg.Database.DSN(),
		ConnectRetries:    cfg.Database.ConnectRetries,
		ConnectRetryDelay: cfg.Database.ConnectRetryDelay,
		SlowThreshold:     cfg.Database.SlowThreshold,
	}, logger)
	if err != nil {
		return nil, err
	}

	pool, err := database.NewPoolManager(db, database.PoolConfig{
		MaxOpenConns:        cfg.Database.MaxOpenConns,
		MaxIdleConns:        cfg.Database.MaxIdleConns,
		ConnMaxLifetime:     cfg.Database.ConnMaxLifetime,
		HealthCheckInterval: cfg.Database.HealthCheckInterval,
	}, collector, logger)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("create database pool: %w", err)
	}

	cacheManager, err := cache.NewManager(ctx, cache.Config{
		Addr:                cfg.Redis.Addr,
		Password:            cfg.Redis.Password,
		DB:                  cfg.Redis.DB,
		MaxRetries:          cfg.Redis.MaxRetries,
		PoolSize:            cfg.Redis.PoolSize,
		MinIdleConns:        cfg.Redis.MinIdleConns,
		ConnectRetries:      cfg.Redis.ConnectRetries,
		ConnectRetryDelay:   cfg.Redis.ConnectRetryDelay,
		OpTimeout:           cfg.Redis.OpTimeout,
		TLSEnabled:          cfg.Redis.TLSEnabled,
		HealthCheckInterval: cfg.Redis.HealthCheckInterval,
	}, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &Resources{Pool: pool, Cache: cacheManager}, nil
}

// Close 先关缓存再关数据库，两者的错误都会被收集
func (r *Resources) Close() error {
	if r == nil {
		return nil
	}
	var result *multierror.Error
	if r.Cache != nil {
		if err := r.Cache.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close cache: %w", err))
		}
	}
	if r.Pool != nil {
		if err := r.Pool.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close database: %w", err))
		}
	}
	return result.ErrorOrNil()
}
