// Copyright (c) EnvSync Authors.
// Licensed under the MIT License.

/*
Package main 提供 EnvSync 服务端程序入口。

# 概述

cmd/envsync 是环境变量同步服务的可执行入口，提供 HTTP API 服务、
数据库迁移、引导文件离线维护、健康检查和版本查询等子命令。
配置按 默认值 → YAML → ENVSYNC_ 环境变量 的顺序加载。

# 核心类型

  - Server    : 组装 lifecycle.App、HTTP 与 Metrics 两个监听器，负责优雅关闭
  - Middleware: HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、migrate、envfile、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、OTelTracing、
    MetricsMiddleware、RequestLogger、CORS（来源读取 CORS_ORIGINS）、RateLimiter（基于 IP）
  - 认证：JWTAuth 校验访问令牌，RequireSuperuser 保护写操作
  - 优雅关闭：信号 → 停止 HTTP 与 Metrics → 导出快照 → 关闭 Redis 与数据库 → 刷新遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
