// 版权所有 2024 EnvSync Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的环境变量缓存层。

# 概述

Manager 负责连接生命周期：初始连接按固定间隔有限次重试，失败即返回错误；
每次操作施加统一超时；后台定时 Ping 做健康检查；Close 幂等。
支持可选 TLS 连接（tlsutil 加固配置）。

EnvCache 在 Manager 之上实现命名空间化（默认前缀 "env:"）的键值投影。
缓存只保存值，不保存描述与时间戳。

# 错误语义

EnvCache 的所有方法吞掉连接故障并转换为安全默认值：
Get 返回 ok=false（与真正未命中无法区分），写操作返回 false，
Exists 返回 false，GetAll 返回空映射。故障被记录到日志与
cache_failures_total 指标。

SetMany 使用非事务管道，返回逐键 BulkResult；SyncFromSnapshot
先清空命名空间（SCAN + DEL 分批）再整体写入，从不做差量合并。
*/
package cache
