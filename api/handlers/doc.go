// Copyright (c) EnvSync Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 EnvSync HTTP API 的请求处理器实现。

# 核心类型

  - EnvHandler    : /api/env 下的增删改查、缓存重同步、引导文件导入导出与备份恢复
  - AuthHandler   : /users/signup、/login/access-token、/users/me
  - HealthHandler : /、/health、/healthz、/ready、/version
  - Response      : 统一 JSON 响应结构（success + data + error + timestamp + request_id）
  - ResponseWriter: 包装 http.ResponseWriter 以捕获状态码与响应大小

# 约定

处理器只依赖服务层，鉴权由调用方通过 Register 传入的包装函数完成。
存储层的哨兵错误（store.ErrNotFound、store.ErrAlreadyExists、envfile.ErrBackupNotFound）
统一映射为 types.Error，其余错误一律以 500 返回且不暴露细节。
*/
package handlers
