// Copyright (c) EnvSync Authors.
// Licensed under the MIT License.

/*
Package store 实现持久化存储层，基于 GORM。

# 环境变量

EnvStore 以 env_variables 表为唯一事实来源：

  - Get / List / Snapshot：读取单条、全部记录或键值快照
  - Create：键已存在时返回 ErrAlreadyExists
  - Update：部分更新，nil 字段不变，任一字段变化时刷新 updated_at
  - Delete：返回记录此前是否存在
  - InsertMissing：单事务导入，只插入缺失的键，失败时整体回滚

并发更新同一键时以最后提交者为准，不做乐观锁。

# 用户

UserStore 提供用户的创建与按 ID、用户名、邮箱查询。
InitSchema 通过 AutoMigrate 创建缺失的表。
*/
package store
