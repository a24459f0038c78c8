package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDialector(t *testing.T) {
	tests := []struct {
		driver   string
		wantName string
		wantErr  bool
	}{
		{DriverPostgres, "postgres", false},
		{DriverMySQL, "mysql", false},
		{DriverSQLite, "sqlite", false},
		{DriverSQLite3, "sqlite", false},
		{"", "", true},
		{"oracle", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := Dialector(tt.driver, "dsn")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, d.Name())
		})
	}
}

func TestOpen_SQLiteMemory(t *testing.T) {
	db, err := Open(context.Background(), OpenConfig{
		Driver:         DriverSQLite,
		DSN:            ":memory:",
		ConnectRetries: 3,
	}, zap.NewNop())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	assert.NoError(t, sqlDB.Ping())
}

func TestOpen_FailsAfterBoundedRetries(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "missing", "dir", "env.db")

	start := time.Now()
	db, err := Open(context.Background(), OpenConfig{
		Driver:            DriverSQLite,
		DSN:               dsn,
		ConnectRetries:    2,
		ConnectRetryDelay: 20 * time.Millisecond,
	}, zap.NewNop())

	require.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), OpenConfig{Driver: "oracle"}, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestOpen_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Open(ctx, OpenConfig{
		Driver:            DriverSQLite,
		DSN:               filepath.Join(t.TempDir(), "missing", "env.db"),
		ConnectRetries:    5,
		ConnectRetryDelay: time.Hour,
	}, zap.NewNop())
	assert.ErrorIs(t, err, context.Canceled)
}
