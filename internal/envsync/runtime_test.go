package envsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/envsync/internal/store"
	"github.com/BaSui01/envsync/testutil"
)

func TestService_LookupPrefersCache(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.TestContext(t)

	require.NoError(t, f.store.Create(ctx, &store.EnvVariable{Key: "CORS_ORIGINS", Value: "https://db.example"}))
	require.NoError(t, f.mr.Set("env:CORS_ORIGINS", "https://cache.example"))

	v, ok := f.svc.Lookup(ctx, "CORS_ORIGINS")
	assert.True(t, ok)
	assert.Equal(t, "https://cache.example", v)
}

func TestService_LookupFallsBackAndFillsCache(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.TestContext(t)

	require.NoError(t, f.store.Create(ctx, &store.EnvVariable{Key: "X", Value: "1"}))

	v, ok := f.svc.Lookup(ctx, "X")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.True(t, f.mr.Exists("env:X"))

	_, ok = f.svc.Lookup(ctx, "MISSING")
	assert.False(t, ok)
}

func TestService_TypedAccessors(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.TestContext(t)

	require.NoError(t, f.store.Create(ctx, &store.EnvVariable{Key: "ACCESS_TOKEN_EXPIRE_MINUTES", Value: " 45 "}))
	require.NoError(t, f.store.Create(ctx, &store.EnvVariable{Key: "BAD_INT", Value: "soon"}))
	require.NoError(t, f.store.Create(ctx, &store.EnvVariable{Key: "CORS_ORIGINS", Value: "https://a.example, ,https://b.example "}))

	assert.Equal(t, 45, f.svc.Int(ctx, "ACCESS_TOKEN_EXPIRE_MINUTES", 30))
	assert.Equal(t, 30, f.svc.Int(ctx, "BAD_INT", 30))
	assert.Equal(t, 30, f.svc.Int(ctx, "MISSING", 30))

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, f.svc.Strings(ctx, "CORS_ORIGINS", nil))
	assert.Equal(t, []string{"*"}, f.svc.Strings(ctx, "MISSING", []string{"*"}))

	assert.Equal(t, "fallback", f.svc.Value(ctx, "MISSING", "fallback"))
	assert.Equal(t, "soon", f.svc.Value(ctx, "BAD_INT", "fallback"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a ,b,, "))
	assert.Empty(t, SplitList(""))
}
