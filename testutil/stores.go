package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/envsync/internal/cache"
	"github.com/BaSui01/envsync/internal/database"
)

// =============================================================================
// 🗄️ 存储夹具
// =============================================================================

// NewTestDB 创建基于临时文件的纯 Go sqlite 数据库与连接池。
// 连接数限制为 1，测试结束时自动关闭。调用方负责建表。
func NewTestDB(t *testing.T) (*gorm.DB, *database.PoolManager) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "envsync_test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	pool, err := database.NewPoolManager(db, database.PoolConfig{
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return db, pool
}

// NewTestRedis 启动 miniredis 并连接缓存管理器，测试结束时自动关闭
func NewTestRedis(t *testing.T) (*miniredis.Miniredis, *cache.Manager) {
	t.Helper()

	mr := miniredis.RunT(t)
	manager, err := cache.NewManager(context.Background(), cache.Config{
		Addr:           mr.Addr(),
		MaxRetries:     -1,
		ConnectRetries: 1,
		OpTimeout:      time.Second,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("connect miniredis: %v", err)
	}
	t.Cleanup(func() { manager.Close() })

	return mr, manager
}

// NewTestEnvCache 在 miniredis 上创建默认前缀的环境变量缓存
func NewTestEnvCache(t *testing.T) (*miniredis.Miniredis, *cache.EnvCache) {
	t.Helper()

	mr, manager := NewTestRedis(t)
	return mr, cache.NewEnvCache(manager, "", nil, zap.NewNop())
}
