package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// 密码长度约束（bcrypt 只使用前 72 字节）
const (
	MinPasswordLength = 8
	MaxPasswordLength = 40
)

// ErrPasswordLength 密码长度不在允许范围内
var ErrPasswordLength = fmt.Errorf("password must be %d-%d characters", MinPasswordLength, MaxPasswordLength)

// HashPassword 使用 bcrypt 生成密码哈希
func HashPassword(password string) (string, error) {
	if n := len(password); n < MinPasswordLength || n > MaxPasswordLength {
		return "", ErrPasswordLength
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword 校验明文密码与哈希是否匹配
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
