package cache

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 EnvCache 测试
// =============================================================================

func setupEnvCache(t *testing.T) (*miniredis.Miniredis, *EnvCache) {
	t.Helper()
	mr, manager := setupTestRedis(t)
	return mr, NewEnvCache(manager, "", nil, zap.NewNop())
}

func TestEnvCache_DefaultPrefix(t *testing.T) {
	mr, c := setupEnvCache(t)
	ctx := context.Background()

	assert.Equal(t, DefaultPrefix, c.Prefix())
	require.True(t, c.Set(ctx, "FOO", "bar"))

	got, err := mr.Get("env:FOO")
	require.NoError(t, err)
	assert.Equal(t, "bar", got)
}

func TestEnvCache_GetSetDelete(t *testing.T) {
	_, c := setupEnvCache(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, "FOO")
	assert.False(t, ok)

	require.True(t, c.Set(ctx, "FOO", "bar"))
	val, ok := c.Get(ctx, "FOO")
	assert.True(t, ok)
	assert.Equal(t, "bar", val)
	assert.True(t, c.Exists(ctx, "FOO"))

	require.True(t, c.Delete(ctx, "FOO"))
	_, ok = c.Get(ctx, "FOO")
	assert.False(t, ok)
	assert.False(t, c.Exists(ctx, "FOO"))
}

func TestEnvCache_EmptyValueIsHit(t *testing.T) {
	_, c := setupEnvCache(t)
	ctx := context.Background()

	require.True(t, c.Set(ctx, "EMPTY", ""))
	val, ok := c.Get(ctx, "EMPTY")
	assert.True(t, ok)
	assert.Equal(t, "", val)
}

func TestEnvCache_SetMany(t *testing.T) {
	_, c := setupEnvCache(t)
	ctx := context.Background()

	result := c.SetMany(ctx, map[string]string{"A": "1", "B": "2", "C": "3"})
	assert.True(t, result.OK())
	assert.ElementsMatch(t, []string{"A", "B", "C"}, result.Applied)

	assert.Equal(t, map[string]string{"A": "1", "B": "2", "C": "3"}, c.GetAll(ctx))
}

func TestEnvCache_SetManyEmpty(t *testing.T) {
	_, c := setupEnvCache(t)

	result := c.SetMany(context.Background(), nil)
	assert.True(t, result.OK())
	assert.Empty(t, result.Applied)
}

func TestEnvCache_ClearAllOnlyTouchesNamespace(t *testing.T) {
	mr, c := setupEnvCache(t)
	ctx := context.Background()

	for i := 0; i < 1200; i++ {
		require.NoError(t, mr.Set(fmt.Sprintf("env:K%d", i), "v"))
	}
	require.NoError(t, mr.Set("session:abc", "keep"))

	assert.True(t, c.ClearAll(ctx))
	assert.Empty(t, c.GetAll(ctx))

	got, err := mr.Get("session:abc")
	require.NoError(t, err)
	assert.Equal(t, "keep", got)
}

func TestEnvCache_SyncFromSnapshotReplacesAll(t *testing.T) {
	_, c := setupEnvCache(t)
	ctx := context.Background()

	require.True(t, c.Set(ctx, "STALE", "old"))
	require.True(t, c.Set(ctx, "A", "old"))

	ok := c.SyncFromSnapshot(ctx, map[string]string{"A": "new", "B": "2"})
	assert.True(t, ok)
	assert.Equal(t, map[string]string{"A": "new", "B": "2"}, c.GetAll(ctx))
}

func TestEnvCache_CustomPrefix(t *testing.T) {
	mr, manager := setupTestRedis(t)
	c := NewEnvCache(manager, "app1:env:", nil, zap.NewNop())
	ctx := context.Background()

	require.True(t, c.Set(ctx, "X", "1"))
	assert.True(t, mr.Exists("app1:env:X"))
	assert.False(t, mr.Exists("env:X"))
}

func TestEnvCache_DegradesWhenRedisDown(t *testing.T) {
	mr, c := setupEnvCache(t)
	ctx := context.Background()

	require.True(t, c.Set(ctx, "FOO", "bar"))
	mr.Close()

	_, ok := c.Get(ctx, "FOO")
	assert.False(t, ok, "cache down looks like a miss")
	assert.False(t, c.Set(ctx, "FOO", "baz"))
	assert.False(t, c.Delete(ctx, "FOO"))
	assert.False(t, c.Exists(ctx, "FOO"))
	assert.False(t, c.ClearAll(ctx))
	assert.Empty(t, c.GetAll(ctx))
	assert.False(t, c.SyncFromSnapshot(ctx, map[string]string{"A": "1"}))

	result := c.SetMany(ctx, map[string]string{"A": "1", "B": "2"})
	assert.False(t, result.OK())
	assert.Len(t, result.Failed, 2)
	assert.Empty(t, result.Applied)
}

func TestEnvCache_DegradesWhenManagerClosed(t *testing.T) {
	_, manager := setupTestRedis(t)
	c := NewEnvCache(manager, "", nil, zap.NewNop())
	require.NoError(t, manager.Close())

	ctx := context.Background()
	_, ok := c.Get(ctx, "FOO")
	assert.False(t, ok)
	assert.False(t, c.Set(ctx, "FOO", "bar"))

	result := c.SetMany(ctx, map[string]string{"A": "1"})
	assert.ErrorIs(t, result.Failed["A"], ErrClosed)
}
