// 版权所有 2024 EnvSync Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖
HTTP、缓存、同步服务、托管键调和与数据库五个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离。
Collector 的记录方法对 nil 接收者安全，组件可在未注入收集器时直接调用。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - 缓存指标：命中、未命中与被降级处理的连接故障计数。
  - 同步指标：读、写、全量重同步、导入、导出的次数与耗时，
    以及调和器按 created/updated/unchanged/failed 分组的键计数。
  - 数据库指标：活跃/空闲连接数 Gauge、查询耗时 Histogram。
*/
package metrics
