// Copyright (c) EnvSync Authors.
// Licensed under the MIT License.

/*
Package reconcile 在启动时确保托管键在持久化存储中有对应记录。

每个托管键独立处理，单键失败只记录并继续：

  - 记录不存在：用兜底值与规范描述创建（Created）
  - 记录存在且描述不同：只更新描述，保留运维人员设置的值（DescriptionUpdated）
  - 记录存在且描述一致：不做任何修改（Unchanged）

每个进程默认只运行一次，force 为 true 时重新运行。处理完全部托管键后执行一次
缓存全量重同步，其结果通过 Report.ResyncErr 返回。
*/
package reconcile
