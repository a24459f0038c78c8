package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/envsync/internal/database"
	"github.com/BaSui01/envsync/internal/metrics"
)

const userTable = "users"

// UserStore 用户持久化存储
type UserStore struct {
	pool    *database.PoolManager
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewUserStore 创建用户存储
func NewUserStore(pool *database.PoolManager, collector *metrics.Collector, logger *zap.Logger) *UserStore {
	return &UserStore{
		pool:    pool,
		metrics: collector,
		logger:  logger.With(zap.String("component", "user_store")),
	}
}

// Create 插入用户，用户名或邮箱重复时返回 ErrAlreadyExists
func (s *UserStore) Create(ctx context.Context, user *User) error {
	defer func(start time.Time) { s.metrics.RecordDBQuery(userTable, "create", time.Since(start)) }(time.Now())

	err := s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&User{}).
			Where("username = ? OR email = ?", user.Username, user.Email).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyExists
		}
		return tx.Create(user).Error
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("user %q: %w", user.Username, ErrAlreadyExists)
	default:
		return fmt.Errorf("create user %q: %w", user.Username, err)
	}
}

// GetByID 按 ID 读取
func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.first(ctx, "id = ?", id)
}

// GetByUsername 按用户名读取
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.first(ctx, "username = ?", username)
}

// GetByEmail 按邮箱读取
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.first(ctx, "email = ?", email)
}

func (s *UserStore) first(ctx context.Context, query string, arg any) (*User, error) {
	defer func(start time.Time) { s.metrics.RecordDBQuery(userTable, "get", time.Since(start)) }(time.Now())

	var user User
	err := s.pool.DB().WithContext(ctx).Where(query, arg).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}
