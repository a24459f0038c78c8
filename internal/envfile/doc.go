// Copyright (c) EnvSync Authors.
// Licensed under the MIT License.

/*
Package envfile 实现引导文件（.env 风格）的解析、序列化、备份轮转与恢复。

# 格式

每行一个 KEY=VALUE，以第一个 '=' 为分隔；空行与 # 开头的注释行被忽略。
值两端为同一引号时剥离最外层引号。导出时写入三行头部注释，键按字典序
升序输出，值包含空格或 $ # " ' 任一字符时以双引号包裹。

# 备份

Write 在写入前把已有文件重命名为 <path>.backup.<YYYYMMDDHHMMSS>；
同一秒内的重复写入会覆盖前一个备份。Restore 先把当前文件移到
<path>.before_restore.<timestamp>，再从备份复制。
*/
package envfile
