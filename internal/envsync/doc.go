// Copyright (c) EnvSync Authors.
// Licensed under the MIT License.

/*
Package envsync 实现环境变量同步服务，协调持久化存储、Redis 缓存与引导文件三者的一致性。

# 一致性约定

持久化存储是唯一事实来源。缓存只保存值的投影，可能过期或缺失，
缺失从不被解释为"键不存在"。引导文件同样是派生视图，导出/导入往返只保留键值，
描述与时间戳会丢失。

  - Read：cache-aside。命中时仍读取持久化存储以获得完整记录；
    未命中时读持久化存储并回填缓存，同一键的并发未命中通过 singleflight 合并。
  - Create / Update：先提交持久化存储，再写穿缓存；提交失败时不触碰缓存。
  - Delete：先删持久化记录，再尽力删除缓存，缓存失败不影响结果。
  - FullResync：以持久化快照整体替换缓存命名空间。
  - ImportFromFile：只插入缺失的键，空值跳过，整批事务，失败时返回 0。
  - ExportSnapshot：轮转已有文件为备份后写入快照。

不存在通过 ok=false 返回，不作为错误；重复创建返回 store.ErrAlreadyExists。
同一键的并发更新以最后提交者为准。

# 运行时取值

Lookup / Value / Int / Strings 以缓存优先、持久化兜底的方式读取运行时可编辑的设置
（如 CORS_ORIGINS、ACCESS_TOKEN_EXPIRE_MINUTES），解析失败时回落到调用方给出的默认值。
*/
package envsync
