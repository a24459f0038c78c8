package lifecycle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/BaSui01/envsync/config"
	"github.com/BaSui01/envsync/internal/auth"
	"github.com/BaSui01/envsync/internal/cache"
	"github.com/BaSui01/envsync/internal/envfile"
	"github.com/BaSui01/envsync/internal/envsync"
	"github.com/BaSui01/envsync/internal/metrics"
	"github.com/BaSui01/envsync/internal/reconcile"
	"github.com/BaSui01/envsync/internal/store"
)

// App 把资源句柄注入各组件，并负责启动与关闭序列
type App struct {
	cfg       *config.Config
	resources *Resources
	logger    *zap.Logger

	Env        *envsync.Service
	EnvCache   *cache.EnvCache
	Users      *store.UserStore
	Auth       *auth.Service
	Reconciler *reconcile.Reconciler

	watcher      *envfile.Watcher
	shutdownOnce sync.Once
	shutdownErr  error
}

// New 组装服务。访问令牌有效期在每次签发时从 ACCESS_TOKEN_EXPIRE_MINUTES 读取，
// 通过接口修改后立即生效。
func New(cfg *config.Config, resources *Resources, collector *metrics.Collector, logger *zap.Logger) *App {
	envStore := store.NewEnvStore(resources.Pool, collector, logger)
	envCache := cache.NewEnvCache(resources.Cache, cfg.Redis.KeyPrefix, collector, logger)
	svc := envsync.NewService(envStore, envCache, envfile.New(nil), collector, logger)

	fallbackTTL := cfg.Auth.AccessTokenExpireMinutes
	tokens := auth.NewTokenIssuer(cfg.Auth.SecretKey, cfg.Auth.Issuer, func(ctx context.Context) time.Duration {
		return time.Duration(svc.Int(ctx, "ACCESS_TOKEN_EXPIRE_MINUTES", fallbackTTL)) * time.Minute
	})
	users := store.NewUserStore(resources.Pool, collector, logger)

	defaults := reconcile.BuildDefaults(cfg.Env.ManagedKeys, ManagedValues(cfg), cfg.Env.ManagedDescriptions)

	return &App{
		cfg:        cfg,
		resources:  resources,
		logger:     logger.With(zap.String("component", "lifecycle")),
		Env:        svc,
		EnvCache:   envCache,
		Users:      users,
		Auth:       auth.NewService(users, tokens, logger),
		Reconciler: reconcile.New(svc, defaults, collector, logger),
	}
}

// ManagedValues 托管键的兜底值：内置键取自服务配置，env.managed_defaults 中的同名项优先
func ManagedValues(cfg *config.Config) map[string]string {
	values := map[string]string{
		"CORS_ORIGINS":                strings.Join(cfg.Server.CORSOrigins, ","),
		"ACCESS_TOKEN_EXPIRE_MINUTES": strconv.Itoa(cfg.Auth.AccessTokenExpireMinutes),
	}
	for k, v := range cfg.Env.ManagedDefaults {
		values[k] = v
	}
	return values
}

// Resources 返回注入的资源句柄
func (a *App) Resources() *Resources {
	return a.resources
}

// =============================================================================
// 🚀 启动
// =============================================================================

// Startup 建表 → 初始超级用户 → 导入引导文件 → 强制调和托管键（含缓存全量重同步）。
// 任一步骤失败都返回错误，调用方应中止启动。
func (a *App) Startup(ctx context.Context) error {
	if err := store.InitSchema(a.resources.Pool.DB().WithContext(ctx)); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	if a.cfg.Auth.FirstSuperuser != "" {
		created, err := a.Auth.EnsureSuperuser(ctx, a.cfg.Auth.FirstSuperuser, a.cfg.Auth.FirstSuperuserEmail, a.cfg.Auth.FirstSuperuserPassword)
		if err != nil {
			return err
		}
		if created {
			a.logger.Info("first superuser created", zap.String("username", a.cfg.Auth.FirstSuperuser))
		}
	}

	imported, err := a.Env.ImportFromFile(ctx, a.cfg.Env.BootstrapPath)
	if err != nil {
		return fmt.Errorf("import bootstrap file: %w", err)
	}

	report := a.Reconciler.Run(ctx, true)
	if report.ResyncErr != nil {
		return fmt.Errorf("initial cache resync: %w", report.ResyncErr)
	}

	if a.cfg.Env.WatchInterval > 0 {
		if err := a.startWatcher(ctx); err != nil {
			return err
		}
	}

	a.logger.Info("startup complete",
		zap.Int("imported", imported),
		zap.Int("managed_keys", len(report.Outcomes)),
		zap.Int("managed_failed", len(report.Failed())),
	)
	return nil
}

// startWatcher 引导文件出现或变化时重新导入，只插入缺失的键
func (a *App) startWatcher(ctx context.Context) error {
	w := envfile.NewWatcher(a.cfg.Env.BootstrapPath,
		envfile.WithPollInterval(a.cfg.Env.WatchInterval),
		envfile.WithWatcherLogger(a.logger))
	w.OnChange(func(evt envfile.WatchEvent) {
		if evt.Op == envfile.WatchRemove {
			return
		}
		if _, err := a.Env.ImportFromFile(context.WithoutCancel(ctx), evt.Path); err != nil {
			a.logger.Error("re-import after file change failed", zap.Error(err))
		}
	})
	if err := w.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("start bootstrap watcher: %w", err)
	}
	a.watcher = w
	return nil
}

// =============================================================================
// 🛑 关闭
// =============================================================================

// Shutdown 停止监听 → 导出快照 → 关闭缓存 → 关闭数据库。每一步的失败都只记录日志，
// 后续步骤照常执行；返回聚合后的错误仅供观察。多次调用只执行一次。
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		a.shutdownErr = a.shutdown(ctx)
	})
	return a.shutdownErr
}

func (a *App) shutdown(ctx context.Context) error {
	var result *multierror.Error

	if a.watcher != nil {
		a.watcher.Stop()
	}

	if a.cfg.Env.ExportOnShutdown {
		if err := a.exportOnShutdown(ctx); err != nil {
			a.logger.Error("export on shutdown failed", zap.Error(err))
			result = multierror.Append(result, err)
		}
	}

	if err := a.resources.Close(); err != nil {
		a.logger.Error("closing resources failed", zap.Error(err))
		result = multierror.Append(result, err)
	}

	a.logger.Info("shutdown complete")
	return result.ErrorOrNil()
}

// exportOnShutdown 持久化存储为空时不覆盖引导文件
func (a *App) exportOnShutdown(ctx context.Context) error {
	snapshot, err := a.Env.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if len(snapshot) == 0 {
		a.logger.Info("durable store empty, export skipped")
		return nil
	}
	if _, err := a.Env.ExportSnapshot(ctx, a.cfg.Env.BootstrapPath); err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	return nil
}
