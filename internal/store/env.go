package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/envsync/internal/database"
	"github.com/BaSui01/envsync/internal/metrics"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists 主键或唯一键冲突
	ErrAlreadyExists = errors.New("record already exists")
)

const (
	envTable = "env_variables"

	// 导入事务遇到死锁等瞬时错误时的最大尝试次数
	importAttempts = 3
)

// =============================================================================
// 🗄️ 环境变量存储
// =============================================================================

// EnvStore 环境变量持久化存储，是唯一的事实来源
type EnvStore struct {
	pool    *database.PoolManager
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewEnvStore 创建环境变量存储
func NewEnvStore(pool *database.PoolManager, collector *metrics.Collector, logger *zap.Logger) *EnvStore {
	return &EnvStore{
		pool:    pool,
		metrics: collector,
		logger:  logger.With(zap.String("component", "env_store")),
	}
}

// keyEq 生成带引号的 key 列条件（key 在 MySQL 中是保留字）
func keyEq(key string) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}

func (s *EnvStore) observe(op string, start time.Time) {
	s.metrics.RecordDBQuery(envTable, op, time.Since(start))
}

// Get 按键读取，不存在时返回 ErrNotFound
func (s *EnvStore) Get(ctx context.Context, key string) (*EnvVariable, error) {
	defer s.observe("get", time.Now())

	var row EnvVariable
	err := s.pool.DB().WithContext(ctx).Where(keyEq(key)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get env %q: %w", key, err)
	}
	return &row, nil
}

// List 返回全部记录，按键升序
func (s *EnvStore) List(ctx context.Context) ([]EnvVariable, error) {
	defer s.observe("list", time.Now())

	var rows []EnvVariable
	if err := s.pool.DB().WithContext(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list env: %w", err)
	}
	return rows, nil
}

// Snapshot 返回全部键值（丢弃描述与时间戳）
func (s *EnvStore) Snapshot(ctx context.Context) (map[string]string, error) {
	rows, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := make(map[string]string, len(rows))
	for _, row := range rows {
		snapshot[row.Key] = row.Value
	}
	return snapshot, nil
}

// Create 插入新记录，键已存在时返回 ErrAlreadyExists
func (s *EnvStore) Create(ctx context.Context, row *EnvVariable) error {
	defer s.observe("create", time.Now())

	err := s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&EnvVariable{}).Where(keyEq(row.Key)).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyExists
		}
		return tx.Create(row).Error
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("env %q: %w", row.Key, ErrAlreadyExists)
	default:
		return fmt.Errorf("create env %q: %w", row.Key, err)
	}
}

// Update 部分更新。只有 patch 中非 nil 的字段被修改，任一字段变化时刷新 updated_at。
// 记录不存在时返回 ErrNotFound。
func (s *EnvStore) Update(ctx context.Context, key string, patch EnvPatch) (*EnvVariable, error) {
	defer s.observe("update", time.Now())

	var row EnvVariable
	err := s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where(keyEq(key)).Take(&row).Error; err != nil {
			return err
		}
		if patch.Empty() {
			return nil
		}
		if patch.Value != nil {
			row.Value = *patch.Value
		}
		if patch.Description != nil {
			row.Description = patch.Description
		}
		return tx.Save(&row).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update env %q: %w", key, err)
	}
	return &row, nil
}

// Delete 删除记录，返回记录此前是否存在
func (s *EnvStore) Delete(ctx context.Context, key string) (bool, error) {
	defer s.observe("delete", time.Now())

	var affected int64
	err := s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		res := tx.Where(keyEq(key)).Delete(&EnvVariable{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, fmt.Errorf("delete env %q: %w", key, err)
	}
	return affected > 0, nil
}

// InsertMissing 在单个事务中插入 values 中尚不存在的键，已有记录从不被覆盖。
// 任一插入失败时整体回滚并返回错误，插入计数为 0。
func (s *EnvStore) InsertMissing(ctx context.Context, values map[string]string) (int, error) {
	defer s.observe("insert_missing", time.Now())

	if len(values) == 0 {
		return 0, nil
	}

	var inserted int
	err := s.pool.WithTransactionRetry(ctx, importAttempts, func(tx *gorm.DB) error {
		inserted = 0

		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}

		inKeys := make([]any, len(keys))
		for i, k := range keys {
			inKeys[i] = k
		}

		var existing []string
		err := tx.Model(&EnvVariable{}).
			Where(clause.IN{Column: clause.Column{Name: "key"}, Values: inKeys}).
			Pluck("key", &existing).Error
		if err != nil {
			return err
		}
		present := make(map[string]struct{}, len(existing))
		for _, k := range existing {
			present[k] = struct{}{}
		}

		for _, k := range keys {
			if _, ok := present[k]; ok {
				continue
			}
			if err := tx.Create(&EnvVariable{Key: k, Value: values[k]}).Error; err != nil {
				return fmt.Errorf("insert %q: %w", k, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("insert missing env: %w", err)
	}
	return inserted, nil
}
