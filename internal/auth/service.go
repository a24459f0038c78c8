package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/envsync/internal/store"
)

var (
	// ErrInvalidCredentials 用户名或密码错误
	ErrInvalidCredentials = errors.New("incorrect username or password")
	// ErrInactiveUser 用户已停用
	ErrInactiveUser = errors.New("inactive user")
	// ErrInvalidInput 注册参数不合法
	ErrInvalidInput = errors.New("invalid registration input")
)

// RegisterInput 注册参数
type RegisterInput struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Nickname *string `json:"nickname"`
}

// validate 校验长度与邮箱格式
func (in RegisterInput) validate() error {
	var problems []string
	if in.Username == "" || len(in.Username) > 50 {
		problems = append(problems, "username must be 1-50 characters")
	}
	if len(in.Email) > 255 {
		problems = append(problems, "email must be at most 255 characters")
	} else if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		problems = append(problems, "email is not a valid address")
	}
	if n := len(in.Password); n < MinPasswordLength || n > MaxPasswordLength {
		problems = append(problems, ErrPasswordLength.Error())
	}
	if in.Nickname != nil && (len(*in.Nickname) == 0 || len(*in.Nickname) > 255) {
		problems = append(problems, "nickname must be 1-255 characters")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

// Service 用户注册、登录与令牌校验
type Service struct {
	users  *store.UserStore
	tokens *TokenIssuer
	logger *zap.Logger
}

// NewService 创建认证服务
func NewService(users *store.UserStore, tokens *TokenIssuer, logger *zap.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		logger: logger.With(zap.String("component", "auth")),
	}
}

// Tokens 返回令牌签发器
func (s *Service) Tokens() *TokenIssuer { return s.tokens }

// Register 注册普通用户，用户名或邮箱重复时返回 store.ErrAlreadyExists
func (s *Service) Register(ctx context.Context, in RegisterInput) (*store.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.validate(); err != nil {
		return nil, err
	}
	return s.create(ctx, in, false)
}

func (s *Service) create(ctx context.Context, in RegisterInput, superuser bool) (*store.User, error) {
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &store.User{
		Username:       in.Username,
		Email:          in.Email,
		IsActive:       true,
		IsSuperuser:    superuser,
		Nickname:       in.Nickname,
		HashedPassword: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered",
		zap.String("username", user.Username),
		zap.Bool("superuser", superuser))
	return user, nil
}

// Authenticate 按用户名校验密码
func (s *Service) Authenticate(ctx context.Context, username, password string) (*store.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !VerifyPassword(user.HashedPassword, password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

// Login 认证成功后签发访问令牌
func (s *Service) Login(ctx context.Context, username, password string) (Token, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return Token{}, err
	}
	return s.tokens.Issue(ctx, user.ID, user.IsSuperuser)
}

// CurrentUser 根据令牌载荷读取用户，用户不存在或停用时返回 ErrInvalidToken
func (s *Service) CurrentUser(ctx context.Context, claims *Claims) (*store.User, error) {
	id, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

// EnsureSuperuser 初始超级用户不存在时创建，已存在时不做修改
func (s *Service) EnsureSuperuser(ctx context.Context, username, email, password string) (bool, error) {
	if username == "" {
		return false, nil
	}
	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	if email == "" {
		email = username + "@localhost"
	}
	if _, err := s.create(ctx, RegisterInput{Username: username, Email: email, Password: password}, true); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return false, nil
		}
		return false, fmt.Errorf("create first superuser: %w", err)
	}
	return true, nil
}
