package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/envsync/testutil"
)

func setupUserStore(t *testing.T) *UserStore {
	t.Helper()
	db, pool := testutil.NewTestDB(t)
	require.NoError(t, InitSchema(db))
	return NewUserStore(pool, nil, zap.NewNop())
}

func TestUserStore_CreateAssignsID(t *testing.T) {
	s := setupUserStore(t)
	ctx := testutil.TestContext(t)

	user := &User{Username: "alice", Email: "alice@example.com", IsActive: true, HashedPassword: "x"}
	require.NoError(t, s.Create(ctx, user))
	assert.NotEqual(t, uuid.Nil, user.ID)

	got, err := s.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.True(t, got.IsActive)
	assert.False(t, got.IsSuperuser)

	got, err = s.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	got, err = s.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestUserStore_CreateDuplicate(t *testing.T) {
	s := setupUserStore(t)
	ctx := testutil.TestContext(t)

	require.NoError(t, s.Create(ctx, &User{Username: "alice", Email: "a@example.com", HashedPassword: "x"}))

	err := s.Create(ctx, &User{Username: "alice", Email: "other@example.com", HashedPassword: "x"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	err = s.Create(ctx, &User{Username: "bob", Email: "a@example.com", HashedPassword: "x"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestUserStore_NotFound(t *testing.T) {
	s := setupUserStore(t)
	ctx := testutil.TestContext(t)

	_, err := s.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
