// Copyright (c) EnvSync Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 EnvSync 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 存储夹具: NewTestDB（临时文件 sqlite + 单连接 PoolManager）、
    NewTestRedis / NewTestEnvCache（miniredis + cache.Manager）
  - 异步断言: AssertEventuallyTrue / AssertEventuallyEqual / WaitFor
  - 数据工具: MustJSON / MustParseJSON

# 使用示例

	db, pool := testutil.NewTestDB(t)
	require.NoError(t, store.InitSchema(db))
	mr, envCache := testutil.NewTestEnvCache(t)
*/
package testutil
