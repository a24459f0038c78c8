package envsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/envsync/internal/cache"
	"github.com/BaSui01/envsync/internal/envfile"
	"github.com/BaSui01/envsync/internal/metrics"
	"github.com/BaSui01/envsync/internal/store"
)

const instrumentationName = "github.com/BaSui01/envsync/internal/envsync"

// sharedReadTimeout 合并后的未命中回填的上限
const sharedReadTimeout = 30 * time.Second

// Cache 同步服务依赖的缓存能力，连接故障在实现内部被吸收
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) bool
	Delete(ctx context.Context, key string) bool
	SyncFromSnapshot(ctx context.Context, snapshot map[string]string) bool
}

var _ Cache = (*cache.EnvCache)(nil)

// ErrCacheSync 全量重同步未能完整写入缓存
var ErrCacheSync = errors.New("cache resync failed")

// Service 环境变量同步服务：持久化存储是唯一事实来源，
// 缓存与引导文件都是可随时从其重建的派生视图。
type Service struct {
	store   *store.EnvStore
	cache   Cache
	files   *envfile.Files
	reads   singleflight.Group
	metrics *metrics.Collector
	logger  *zap.Logger

	tracer       trace.Tracer
	readCounter  metric.Int64Counter
	importedKeys metric.Int64Counter
}

// NewService 创建同步服务
func NewService(envStore *store.EnvStore, envCache Cache, files *envfile.Files, collector *metrics.Collector, logger *zap.Logger) *Service {
	meter := otel.Meter(instrumentationName)
	s := &Service{
		store:   envStore,
		cache:   envCache,
		files:   files,
		metrics: collector,
		logger:  logger.With(zap.String("component", "env_sync")),
		tracer:  otel.Tracer(instrumentationName),
	}

	var err error
	if s.readCounter, err = meter.Int64Counter("envsync.read.total",
		metric.WithDescription("Env variable reads by cache outcome"),
		metric.WithUnit("{read}")); err != nil {
		s.logger.Warn("create otel counter failed", zap.Error(err))
	}
	if s.importedKeys, err = meter.Int64Counter("envsync.import.keys",
		metric.WithDescription("Keys inserted from the bootstrap file"),
		metric.WithUnit("{key}")); err != nil {
		s.logger.Warn("create otel counter failed", zap.Error(err))
	}
	return s
}

// Files 返回引导文件操作集合
func (s *Service) Files() *envfile.Files {
	return s.files
}

func (s *Service) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	ctx, span := s.tracer.Start(ctx, "envsync."+op, trace.WithAttributes(attrs...))
	return ctx, span, time.Now()
}

func (s *Service) finish(span trace.Span, op string, start time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	s.metrics.RecordSyncOperation(op, err, time.Since(start))
}

// =============================================================================
// 📖 读路径（cache-aside）
// =============================================================================

// Read 按键读取。先查缓存；命中时仍从持久化存储读取完整记录（描述与时间戳），
// 未命中时读持久化存储并回填缓存。ok=false 表示键不存在。
func (s *Service) Read(ctx context.Context, key string) (row *store.EnvVariable, ok bool, err error) {
	ctx, span, start := s.start(ctx, "read", attribute.String("env.key", key))
	defer func() { s.finish(span, "read", start, err) }()

	cached, hit := s.cache.Get(ctx, key)
	span.SetAttributes(attribute.Bool("cache.hit", hit))
	if s.readCounter != nil {
		s.readCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("cache_hit", hit)))
	}

	if hit {
		row, err = s.store.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			// 缓存中残留了持久化存储已没有的键
			s.cache.Delete(ctx, key)
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		if row.Value != cached {
			s.cache.Set(ctx, key, row.Value)
		}
		return row, true, nil
	}

	// 同一键的并发未命中只触发一次持久化读取与回填。共享调用脱离发起方的取消，
	// 每个调用方只按自己的 ctx 放弃等待。
	ch := s.reads.DoChan(key, func() (any, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()

		row, err := s.store.Get(fillCtx, key)
		if err != nil {
			return nil, err
		}
		s.cache.Set(fillCtx, row.Key, row.Value)
		return row, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res = <-ch:
	}
	if errors.Is(res.Err, store.ErrNotFound) {
		return nil, false, nil
	}
	if res.Err != nil {
		return nil, false, res.Err
	}
	copied := *res.Val.(*store.EnvVariable)
	return &copied, true, nil
}

// List 返回全部记录，按键升序
func (s *Service) List(ctx context.Context) (rows []store.EnvVariable, err error) {
	ctx, span, start := s.start(ctx, "list")
	defer func() { s.finish(span, "list", start, err) }()

	return s.store.List(ctx)
}

// Snapshot 返回持久化存储的键值快照
func (s *Service) Snapshot(ctx context.Context) (map[string]string, error) {
	return s.store.Snapshot(ctx)
}

// =============================================================================
// ✍️ 写路径（write-through）
// =============================================================================

// Create 新建记录。键已存在时返回 store.ErrAlreadyExists，值含换行时返回 envfile.ErrInvalidValue；
// 持久化提交成功后才写缓存，失败时不触碰缓存。
func (s *Service) Create(ctx context.Context, row store.EnvVariable) (created *store.EnvVariable, err error) {
	ctx, span, start := s.start(ctx, "create", attribute.String("env.key", row.Key))
	defer func() { s.finish(span, "create", start, err) }()

	if row.Key == "" {
		return nil, fmt.Errorf("env key must not be empty")
	}
	if err := envfile.CheckValue(row.Value); err != nil {
		return nil, fmt.Errorf("env %q: %w", row.Key, err)
	}
	if err := s.store.Create(ctx, &row); err != nil {
		return nil, err
	}
	s.writeThrough(ctx, row.Key, row.Value)
	return &row, nil
}

// Update 部分更新。ok=false 表示键不存在；提交成功后把新值写入缓存。
func (s *Service) Update(ctx context.Context, key string, patch store.EnvPatch) (row *store.EnvVariable, ok bool, err error) {
	ctx, span, start := s.start(ctx, "update", attribute.String("env.key", key))
	defer func() { s.finish(span, "update", start, err) }()

	if patch.Value != nil {
		if err := envfile.CheckValue(*patch.Value); err != nil {
			return nil, false, fmt.Errorf("env %q: %w", key, err)
		}
	}

	row, err = s.store.Update(ctx, key, patch)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	s.writeThrough(ctx, row.Key, row.Value)
	return row, true, nil
}

// Delete 删除记录并尽力删除缓存。ok=false 表示键不存在；缓存删除失败不影响结果。
func (s *Service) Delete(ctx context.Context, key string) (ok bool, err error) {
	ctx, span, start := s.start(ctx, "delete", attribute.String("env.key", key))
	defer func() { s.finish(span, "delete", start, err) }()

	existed, err := s.store.Delete(ctx, key)
	if err != nil {
		return false, err
	}
	if !existed {
		return false, nil
	}
	if !s.cache.Delete(ctx, key) {
		s.logger.Warn("cache delete failed after durable delete", zap.String("key", key))
	}
	return true, nil
}

func (s *Service) writeThrough(ctx context.Context, key, value string) {
	if !s.cache.Set(ctx, key, value) {
		s.logger.Warn("cache write-through failed; entry will be refreshed on next read or resync",
			zap.String("key", key))
	}
}

// =============================================================================
// 🔄 全量同步与文件导入导出
// =============================================================================

// FullResync 以持久化存储的全部记录整体替换缓存命名空间。
// 失败不会回滚或改动持久化存储。
func (s *Service) FullResync(ctx context.Context) (err error) {
	ctx, span, start := s.start(ctx, "full_resync")
	defer func() { s.finish(span, "full_resync", start, err) }()

	snapshot, err := s.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("env.count", len(snapshot)))

	if !s.cache.SyncFromSnapshot(ctx, snapshot) {
		return ErrCacheSync
	}
	s.logger.Info("cache resynced from durable store", zap.Int("keys", len(snapshot)))
	return nil
}

// ImportFromFile 把引导文件中持久化存储尚不存在的键插入（文件值从不覆盖已有记录，
// 空值被跳过）。整批在一个事务中完成，任一失败时整体回滚并返回 0。
// 文件不存在时返回 0。
func (s *Service) ImportFromFile(ctx context.Context, path string) (count int, err error) {
	ctx, span, start := s.start(ctx, "import", attribute.String("env.path", path))
	defer func() { s.finish(span, "import", start, err) }()

	values, verrs, err := s.files.Load(path)
	if err != nil {
		return 0, err
	}
	for _, le := range verrs {
		s.logger.Warn("skipping invalid bootstrap line",
			zap.String("path", path),
			zap.Int("line", le.Line),
			zap.String("reason", le.Message),
		)
	}

	candidates := make(map[string]string, len(values))
	for k, v := range values {
		if v == "" {
			continue
		}
		candidates[k] = v
	}

	count, err = s.store.InsertMissing(ctx, candidates)
	if err != nil {
		s.logger.Error("bootstrap import rolled back", zap.String("path", path), zap.Error(err))
		return 0, err
	}
	if s.importedKeys != nil {
		s.importedKeys.Add(ctx, int64(count))
	}
	s.logger.Info("bootstrap file imported",
		zap.String("path", path),
		zap.Int("inserted", count),
		zap.Int("candidates", len(candidates)),
	)
	return count, nil
}

// ExportSnapshot 把持久化存储的键值快照写入引导文件，写入前轮转已有文件。
// 返回产生的备份路径（无旧文件时为空）。
func (s *Service) ExportSnapshot(ctx context.Context, path string) (backup string, err error) {
	ctx, span, start := s.start(ctx, "export", attribute.String("env.path", path))
	defer func() { s.finish(span, "export", start, err) }()

	snapshot, err := s.store.Snapshot(ctx)
	if err != nil {
		return "", err
	}

	backup, err = s.files.Write(path, snapshot, true)
	if err != nil {
		return backup, err
	}
	s.logger.Info("durable store exported",
		zap.String("path", path),
		zap.String("backup", backup),
		zap.Int("keys", len(snapshot)),
	)
	return backup, nil
}
