// Package auth 提供用户注册、bcrypt 密码哈希与 HS256 访问令牌。
//
// 令牌有效期由 TTLFunc 在每次签发时求值，服务端据此读取运行时可编辑的
// ACCESS_TOKEN_EXPIRE_MINUTES。
package auth
