package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/envsync/api/handlers"
	"github.com/BaSui01/envsync/config"
	"github.com/BaSui01/envsync/internal/lifecycle"
	"github.com/BaSui01/envsync/internal/metrics"
	"github.com/BaSui01/envsync/internal/server"
	"github.com/BaSui01/envsync/internal/telemetry"
)

// =============================================================================
// 🖥️ Server
// =============================================================================

// Server 持有服务进程的全部组件：业务 App、HTTP 与指标两个监听器
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Providers

	collector *metrics.Collector
	app       *lifecycle.App

	httpManager    *server.Manager
	metricsManager *server.Manager

	rateLimiterCancel context.CancelFunc
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, providers *telemetry.Providers) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		telemetry: providers,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 打开资源、执行启动序列，然后开始监听。启动序列失败时释放已打开的资源。
func (s *Server) Start(ctx context.Context) error {
	s.collector = metrics.NewCollector("envsync", s.logger)

	resources, err := lifecycle.OpenResources(ctx, s.cfg, s.collector, s.logger)
	if err != nil {
		return fmt.Errorf("open resources: %w", err)
	}

	s.app = lifecycle.New(s.cfg, resources, s.collector, s.logger)
	if err := s.app.Startup(ctx); err != nil {
		if closeErr := resources.Close(); closeErr != nil {
			s.logger.Error("release resources after failed startup", zap.Error(closeErr))
		}
		return fmt.Errorf("startup: %w", err)
	}

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if s.cfg.Server.MetricsPort > 0 {
		if err := s.startMetricsServer(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

// newRouter 注册全部路由并套上中间件链。返回的 cancel 停止限流器的清理协程。
func newRouter(app *lifecycle.App, cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (http.Handler, context.CancelFunc) {
	mux := http.NewServeMux()

	health := handlers.NewHealthHandler(handlers.BuildInfo{
		Service:   "envsync",
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}, logger)
	pool := app.Resources().Pool
	health.RegisterCheck(handlers.NewPingCheck("database", pool.Ping).
		WithDetails(func() any { return pool.GetStats() }))
	health.RegisterCheck(handlers.NewPingCheck("redis", app.Resources().Cache.Ping))
	health.Register(mux)

	authed := JWTAuth(app.Auth.Tokens(), logger)
	requireSuperuser := RequireSuperuser(logger)
	admin := func(next http.Handler) http.Handler { return authed(requireSuperuser(next)) }

	handlers.NewEnvHandler(app.Env, cfg.Env.BootstrapPath, logger).Register(mux, authed, admin)
	handlers.NewAuthHandler(app.Auth, logger).Register(mux, authed)

	defaultOrigins := cfg.Server.CORSOrigins
	origins := func(ctx context.Context) []string {
		return app.Env.Strings(ctx, "CORS_ORIGINS", defaultOrigins)
	}

	rateLimiterCtx, cancel := context.WithCancel(context.Background())
	handler := Chain(mux,
		Recovery(logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		MetricsMiddleware(collector),
		RequestLogger(logger),
		CORS(origins),
		RateLimiter(rateLimiterCtx, float64(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst, logger),
	)
	return handler, cancel
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

func (s *Server) startHTTPServer() error {
	handler, cancel := newRouter(s.app, s.cfg, s.collector, s.logger)
	s.rateLimiterCancel = cancel

	s.httpManager = server.NewManager(handler, server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
		MaxConnections:  s.cfg.Server.MaxConnections,
	}, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}
	s.logger.Info("HTTP server started", zap.String("addr", s.httpManager.ListenAddr()))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.metricsManager = server.NewManager(mux, server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}
	s.logger.Info("Metrics server started", zap.String("addr", s.metricsManager.ListenAddr()))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待信号或监听器异常退出，然后执行优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	if err := s.Shutdown(context.Background()); err != nil {
		s.logger.Error("shutdown finished with errors", zap.Error(err))
	}
}

// Shutdown 先停止接收请求，再导出快照并关闭存储，最后刷新遥测数据
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Starting graceful shutdown...")

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	var appErr error
	if s.app != nil {
		appErr = s.app.Shutdown(ctx)
	}

	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
	return appErr
}
