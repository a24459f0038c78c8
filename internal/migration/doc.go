// 版权所有 2024 EnvSync Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理 env_variables 与 users 两张表的版本化 Schema，
支持 PostgreSQL、MySQL 与 SQLite，基于 golang-migrate 实现。

# 概述

SQL 迁移文件按方言内嵌在 migrations/<driver>/ 下，由 iofs 源驱动读取。
SQLite 通过纯 Go 的 "sqlite" database/sql 驱动打开，无需 CGO。
服务启动时的 InitSchema 只负责创建缺失的表；需要可回滚的结构
变更时使用 envsync migrate 子命令。

# 核心类型

  - Migrator / DefaultMigrator：Up/Down/DownAll/Steps/Goto/Force/
    Version/Status/Info/Close。
  - CLI：面向终端的格式化输出。
  - NewMigratorFromConfig：从应用配置构建迁移器。
*/
package migration
