package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken 令牌无效或过期
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims 访问令牌载荷，sub 为用户 ID
type Claims struct {
	Superuser bool `json:"su,omitempty"`
	jwt.RegisteredClaims
}

// UserID 解析 sub 中的用户 ID
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TTLFunc 按请求返回令牌有效期，允许运行时修改
type TTLFunc func(ctx context.Context) time.Duration

// FixedTTL 固定有效期
func FixedTTL(d time.Duration) TTLFunc {
	return func(context.Context) time.Duration { return d }
}

// Token 登录返回的访问令牌
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenIssuer HS256 访问令牌签发与校验
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    TTLFunc
	now    func() time.Time
}

// NewTokenIssuer 创建签发器
func NewTokenIssuer(secret, issuer string, ttl TTLFunc) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue 为用户签发访问令牌
func (t *TokenIssuer) Issue(ctx context.Context, userID uuid.UUID, superuser bool) (Token, error) {
	now := t.now()
	exp := now.Add(t.ttl(ctx))

	claims := Claims{
		Superuser: superuser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{AccessToken: signed, TokenType: "bearer", ExpiresAt: exp}, nil
}

// Parse 校验签名、算法、签发方与有效期
func (t *TokenIssuer) Parse(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return &claims, nil
}
