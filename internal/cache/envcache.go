package cache

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/envsync/internal/metrics"
)

// =============================================================================
// 🗂️ 环境变量缓存
// =============================================================================

// DefaultPrefix 环境变量在 Redis 中的命名空间前缀
const DefaultPrefix = "env:"

const (
	cacheType = "redis"
	scanBatch = 500
)

// BulkResult 批量写入的逐键结果。管道不是事务，部分键可能已写入。
type BulkResult struct {
	Applied []string
	Failed  map[string]error
}

// OK 全部键写入成功
func (r BulkResult) OK() bool {
	return len(r.Failed) == 0
}

// EnvCache 环境变量缓存。所有连接故障都在本层被记录并转换为
// 安全默认值（未命中 / false），不会向调用方传播。
type EnvCache struct {
	manager *Manager
	prefix  string
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewEnvCache 创建环境变量缓存，prefix 为空时使用 DefaultPrefix
func NewEnvCache(manager *Manager, prefix string, collector *metrics.Collector, logger *zap.Logger) *EnvCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &EnvCache{
		manager: manager,
		prefix:  prefix,
		metrics: collector,
		logger:  logger.With(zap.String("component", "env_cache")),
	}
}

// Prefix 返回命名空间前缀
func (c *EnvCache) Prefix() string {
	return c.prefix
}

func (c *EnvCache) key(name string) string {
	return c.prefix + name
}

func (c *EnvCache) fail(op string, err error, fields ...zap.Field) {
	c.metrics.RecordCacheFailure(cacheType, op)
	c.logger.Warn("cache operation degraded", append(fields, zap.String("op", op), zap.Error(err))...)
}

// Get 读取缓存值。未命中与缓存不可用均返回 ok=false，调用方须回退到持久化存储。
func (c *EnvCache) Get(ctx context.Context, name string) (string, bool) {
	client, err := c.manager.client()
	if err != nil {
		c.fail("get", err, zap.String("key", name))
		return "", false
	}
	ctx, cancel := c.manager.withTimeout(ctx)
	defer cancel()

	val, err := client.Get(ctx, c.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		c.metrics.RecordCacheMiss(cacheType)
		return "", false
	}
	if err != nil {
		c.fail("get", err, zap.String("key", name))
		return "", false
	}

	c.metrics.RecordCacheHit(cacheType)
	return val, true
}

// Set 写入缓存值（不过期）
func (c *EnvCache) Set(ctx context.Context, name, value string) bool {
	client, err := c.manager.client()
	if err != nil {
		c.fail("set", err, zap.String("key", name))
		return false
	}
	ctx, cancel := c.manager.withTimeout(ctx)
	defer cancel()

	if err := client.Set(ctx, c.key(name), value, 0).Err(); err != nil {
		c.fail("set", err, zap.String("key", name))
		return false
	}
	return true
}

// SetMany 通过单个管道批量写入，返回逐键结果
func (c *EnvCache) SetMany(ctx context.Context, values map[string]string) BulkResult {
	result := BulkResult{Failed: map[string]error{}}
	if len(values) == 0 {
		return result
	}

	client, err := c.manager.client()
	if err != nil {
		for name := range values {
			result.Failed[name] = err
		}
		c.fail("set_many", err, zap.Int("count", len(values)))
		return result
	}
	ctx, cancel := c.manager.withTimeout(ctx)
	defer cancel()

	names := make([]string, 0, len(values))
	cmds := make([]*redis.StatusCmd, 0, len(values))
	pipe := client.Pipeline()
	for name, value := range values {
		names = append(names, name)
		cmds = append(cmds, pipe.Set(ctx, c.key(name), value, 0))
	}
	_, execErr := pipe.Exec(ctx)

	for i, cmd := range cmds {
		if err := cmd.Err(); err != nil {
			result.Failed[names[i]] = err
			continue
		}
		result.Applied = append(result.Applied, names[i])
	}
	if execErr != nil {
		c.fail("set_many", execErr,
			zap.Int("applied", len(result.Applied)),
			zap.Int("failed", len(result.Failed)),
		)
	}
	return result
}

// Delete 删除缓存值
func (c *EnvCache) Delete(ctx context.Context, name string) bool {
	client, err := c.manager.client()
	if err != nil {
		c.fail("delete", err, zap.String("key", name))
		return false
	}
	ctx, cancel := c.manager.withTimeout(ctx)
	defer cancel()

	if err := client.Del(ctx, c.key(name)).Err(); err != nil {
		c.fail("delete", err, zap.String("key", name))
		return false
	}
	return true
}

// Exists 判断键是否在缓存中，故障时返回 false
func (c *EnvCache) Exists(ctx context.Context, name string) bool {
	client, err := c.manager.client()
	if err != nil {
		c.fail("exists", err, zap.String("key", name))
		return false
	}
	ctx, cancel := c.manager.withTimeout(ctx)
	defer cancel()

	n, err := client.Exists(ctx, c.key(name)).Result()
	if err != nil {
		c.fail("exists", err, zap.String("key", name))
		return false
	}
	return n > 0
}

// ClearAll 删除命名空间下的全部键（SCAN 分批，不阻塞 Redis）
func (c *EnvCache) ClearAll(ctx context.Context) bool {
	client, err := c.manager.client()
	if err != nil {
		c.fail("clear_all", err)
		return false
	}
	ctx, cancel := c.manager.withTimeout(ctx)
	defer cancel()

	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, c.prefix+"*", scanBatch).Result()
		if err != nil {
			c.fail("clear_all", err)
			return false
		}
		if len(keys) > 0 {
			if err := client.Del(ctx, keys...).Err(); err != nil {
				c.fail("clear_all", err)
				return false
			}
		}
		cursor = next
		if cursor == 0 {
			return true
		}
	}
}

// GetAll 返回命名空间下的全部键值（已去除前缀），故障时返回空映射
func (c *EnvCache) GetAll(ctx context.Context) map[string]string {
	result := map[string]string{}

	client, err := c.manager.client()
	if err != nil {
		c.fail("get_all", err)
		return result
	}
	ctx, cancel := c.manager.withTimeout(ctx)
	defer cancel()

	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, c.prefix+"*", scanBatch).Result()
		if err != nil {
			c.fail("get_all", err)
			return map[string]string{}
		}
		if len(keys) > 0 {
			vals, err := client.MGet(ctx, keys...).Result()
			if err != nil {
				c.fail("get_all", err)
				return map[string]string{}
			}
			for i, v := range vals {
				if s, ok := v.(string); ok {
					result[strings.TrimPrefix(keys[i], c.prefix)] = s
				}
			}
		}
		cursor = next
		if cursor == 0 {
			return result
		}
	}
}

// SyncFromSnapshot 以快照整体替换命名空间：先清空再批量写入，从不做差量合并
func (c *EnvCache) SyncFromSnapshot(ctx context.Context, snapshot map[string]string) bool {
	if !c.ClearAll(ctx) {
		return false
	}
	result := c.SetMany(ctx, snapshot)
	if !result.OK() {
		c.logger.Warn("cache snapshot partially applied",
			zap.Int("applied", len(result.Applied)),
			zap.Int("failed", len(result.Failed)),
		)
		return false
	}
	c.logger.Debug("cache rebuilt from snapshot", zap.Int("keys", len(snapshot)))
	return true
}
