// Package cache provides internal cache management.
// This package is internal and should not be imported by external projects.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/envsync/internal/tlsutil"
)

// =============================================================================
// 💾 缓存管理器
// =============================================================================

// ErrClosed 管理器已关闭
var ErrClosed = errors.New("cache manager is closed")

// Manager 缓存管理器，持有 Redis 连接池并负责其生命周期
type Manager struct {
	redis  *redis.Client
	config Config
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// Config 缓存配置
type Config struct {
	// Redis 地址
	Addr string `yaml:"addr" json:"addr"`

	// 密码
	Password string `yaml:"password" json:"password"`

	// 数据库编号
	DB int `yaml:"db" json:"db"`

	// 单条命令的重试次数（go-redis 内置）
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// 连接池大小
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// 最小空闲连接数
	MinIdleConns int `yaml:"min_idle_conns" json:"min_idle_conns"`

	// 建立初始连接的尝试次数
	ConnectRetries int `yaml:"connect_retries" json:"connect_retries"`

	// 两次连接尝试之间的固定间隔
	ConnectRetryDelay time.Duration `yaml:"connect_retry_delay" json:"connect_retry_delay"`

	// 单次操作超时，同时作为 socket 读写超时
	OpTimeout time.Duration `yaml:"op_timeout" json:"op_timeout"`

	// 启用 TLS
	TLSEnabled bool `yaml:"tls_enabled" json:"tls_enabled"`

	// 健康检查间隔
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
}

// DefaultConfig 返回默认缓存配置
func DefaultConfig() Config {
	return Config{
		Addr:                "localhost:6379",
		Password:            "",
		DB:                  0,
		MaxRetries:          1,
		PoolSize:            10,
		MinIdleConns:        2,
		ConnectRetries:      3,
		ConnectRetryDelay:   2 * time.Second,
		OpTimeout:           5 * time.Second,
		HealthCheckInterval: 30 * time.Second,
	}
}

// NewManager 创建缓存管理器。初始连接按固定间隔最多尝试 ConnectRetries 次，
// 全部失败时返回错误，这是本包唯一向调用方暴露连接故障的入口。
func NewManager(ctx context.Context, config Config, logger *zap.Logger) (*Manager, error) {
	if config.ConnectRetries <= 0 {
		config.ConnectRetries = 1
	}
	if config.OpTimeout <= 0 {
		config.OpTimeout = 5 * time.Second
	}

	opts := &redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		MaxRetries:   config.MaxRetries,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.OpTimeout,
		ReadTimeout:  config.OpTimeout,
		WriteTimeout: config.OpTimeout,
	}
	if config.TLSEnabled {
		opts.TLSConfig = tlsutil.ClientConfig(config.Addr)
	}

	client := redis.NewClient(opts)
	log := logger.With(zap.String("component", "cache"))

	var lastErr error
	for attempt := 1; attempt <= config.ConnectRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, config.OpTimeout)
		lastErr = client.Ping(pingCtx).Err()
		cancel()
		if lastErr == nil {
			break
		}

		log.Warn("redis connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", config.ConnectRetries),
			zap.Error(lastErr),
		)
		if attempt == config.ConnectRetries {
			break
		}
		select {
		case <-ctx.Done():
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", ctx.Err())
		case <-time.After(config.ConnectRetryDelay):
		}
	}
	if lastErr != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", config.ConnectRetries, lastErr)
	}

	m := &Manager{
		redis:  client,
		config: config,
		logger: log,
		done:   make(chan struct{}),
	}

	// 启动健康检查
	if config.HealthCheckInterval > 0 {
		go m.healthCheckLoop()
	}

	log.Info("cache manager initialized",
		zap.String("addr", config.Addr),
		zap.Int("pool_size", config.PoolSize),
		zap.Bool("tls", config.TLSEnabled),
	)

	return m, nil
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// client 在未关闭时返回底层客户端
func (m *Manager) client() (*redis.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	return m.redis, nil
}

// withTimeout 为单次操作施加上限
func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.config.OpTimeout)
}

// Ping 检查 Redis 连接
func (m *Manager) Ping(ctx context.Context) error {
	c, err := m.client()
	if err != nil {
		return err
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	return c.Ping(ctx).Err()
}

// Close 关闭缓存管理器
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	close(m.done)
	m.logger.Info("closing cache manager")

	return m.redis.Close()
}

// =============================================================================
// 🏥 健康检查
// =============================================================================

// healthCheckLoop 健康检查循环
func (m *Manager) healthCheckLoop() {
	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
		}

		if err := m.Ping(context.Background()); err != nil {
			if errors.Is(err, ErrClosed) {
				return
			}
			m.logger.Error("cache health check failed", zap.Error(err))
		} else {
			m.logger.Debug("cache health check passed")
		}
	}
}
