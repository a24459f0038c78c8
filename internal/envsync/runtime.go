package envsync

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/envsync/internal/store"
)

// =============================================================================
// ⚙️ 运行时取值
// =============================================================================

// Lookup 读取运行时可编辑的值：缓存优先，未命中时回落到持久化存储并回填缓存。
// 键不存在或存储不可用时 ok=false。
func (s *Service) Lookup(ctx context.Context, key string) (string, bool) {
	if v, ok := s.cache.Get(ctx, key); ok {
		return v, true
	}

	row, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("runtime lookup failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	s.cache.Set(ctx, row.Key, row.Value)
	return row.Value, true
}

// Value 返回字符串值，缺失时返回 def
func (s *Service) Value(ctx context.Context, key, def string) string {
	if v, ok := s.Lookup(ctx, key); ok {
		return v
	}
	return def
}

// Int 返回整数值，缺失或无法解析时返回 def
func (s *Service) Int(ctx context.Context, key string, def int) int {
	raw, ok := s.Lookup(ctx, key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		s.logger.Warn("runtime value is not an integer, using fallback",
			zap.String("key", key),
			zap.String("value", raw),
			zap.Int("fallback", def),
		)
		return def
	}
	return n
}

// Strings 把逗号分隔的值拆成去空白、去空项的列表，缺失时返回 def
func (s *Service) Strings(ctx context.Context, key string, def []string) []string {
	raw, ok := s.Lookup(ctx, key)
	if !ok {
		return def
	}
	return SplitList(raw)
}

// SplitList 按逗号拆分并丢弃空项
func SplitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
