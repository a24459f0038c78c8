// 版权所有 2024 EnvSync Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*/*
包 database 负责持久化存储的连接建立与连接池管理。

# 概述

Open 按驱动名选择 GORM 方言（postgres、mysql、sqlite 纯 Go 实现、
sqlite3 cgo 实现），以固定间隔有限次重试建立连接并 Ping 确认，
全部失败时返回错误。GORM 日志通过 zap 输出，只记录告警与慢查询。

PoolManager 封装 GORM 与 database/sql 的连接池配置，提供健康检查、
连接数指标、事务与可重试事务（死锁、序列化失败、连接中断）。
*/
package database
