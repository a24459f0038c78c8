// Copyright (c) EnvSync Authors.
// Licensed under the MIT License.

/*
Package lifecycle 持有进程级资源并执行启动与关闭序列。

启动顺序：建表、初始超级用户、导入引导文件、强制调和托管键（末尾全量重同步缓存）。
任一步失败都会中止启动。

关闭顺序：停止文件监听、导出快照（存储为空时跳过）、关闭缓存、关闭数据库。
关闭阶段的错误只记录，不会阻止后续步骤。
*/
package lifecycle
