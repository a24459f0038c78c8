// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, ".env", cfg.Env.BootstrapPath)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_port: 8888
  read_timeout: 60s
  cors_origins:
    - https://a.example.com
    - https://b.example.com

redis:
  addr: "redis.example.com:6379"
  password: "secret"
  db: 1
  key_prefix: "staging:"
  connect_retries: 5

database:
  driver: sqlite
  name: /var/lib/envsync/envsync.db

env:
  bootstrap_path: /etc/envsync/.env
  export_on_shutdown: false
  managed_keys: [CORS_ORIGINS]
  managed_defaults:
    FEATURE_X: "on"
  managed_descriptions:
    FEATURE_X: "toggle for X"

log:
  level: "debug"
  format: "console"
`)

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)

	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)
	assert.Equal(t, "staging:", cfg.Redis.KeyPrefix)
	assert.Equal(t, 5, cfg.Redis.ConnectRetries)
	// 未出现在文件中的字段保留默认值
	assert.Equal(t, 5*time.Second, cfg.Redis.OpTimeout)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/var/lib/envsync/envsync.db", cfg.Database.DSN())

	assert.Equal(t, "/etc/envsync/.env", cfg.Env.BootstrapPath)
	assert.False(t, cfg.Env.ExportOnShutdown)
	assert.Equal(t, []string{"CORS_ORIGINS"}, cfg.Env.ManagedKeys)
	assert.Equal(t, map[string]string{"FEATURE_X": "on"}, cfg.Env.ManagedDefaults)
	assert.Equal(t, "toggle for X", cfg.Env.ManagedDescriptions["FEATURE_X"])

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("ENVSYNC_SERVER_HTTP_PORT", "7777")
	t.Setenv("ENVSYNC_SERVER_CORS_ORIGINS", "https://x.io, https://y.io")
	t.Setenv("ENVSYNC_REDIS_ADDR", "env-redis:6379")
	t.Setenv("ENVSYNC_REDIS_CONNECT_RETRY_DELAY", "500ms")
	t.Setenv("ENVSYNC_REDIS_TLS_ENABLED", "true")
	t.Setenv("ENVSYNC_DATABASE_DRIVER", "mysql")
	t.Setenv("ENVSYNC_TELEMETRY_SAMPLE_RATE", "0.5")
	t.Setenv("ENVSYNC_AUTH_SECRET_KEY", "s3cret")
	t.Setenv("ENVSYNC_ENV_MANAGED_DEFAULTS", "FEATURE_X=on, MAX_ITEMS=10")
	t.Setenv("ENVSYNC_LOG_LEVEL", "warn")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, []string{"https://x.io", "https://y.io"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 500*time.Millisecond, cfg.Redis.ConnectRetryDelay)
	assert.True(t, cfg.Redis.TLSEnabled)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.InDelta(t, 0.5, cfg.Telemetry.SampleRate, 0.0001)
	assert.Equal(t, "s3cret", cfg.Auth.SecretKey)
	assert.Equal(t, map[string]string{"FEATURE_X": "on", "MAX_ITEMS": "10"}, cfg.Env.ManagedDefaults)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_port: 8888
redis:
  addr: yaml-redis:6379
  key_prefix: "yaml:"
`)

	t.Setenv("ENVSYNC_SERVER_HTTP_PORT", "9999")
	t.Setenv("ENVSYNC_REDIS_ADDR", "env-redis:6379")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "yaml:", cfg.Redis.KeyPrefix)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")
	t.Setenv("MYAPP_ENV_BOOTSTRAP_PATH", "/tmp/custom.env")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)

	assert.Equal(t, 6666, cfg.Server.HTTPPort)
	assert.Equal(t, "/tmp/custom.env", cfg.Env.BootstrapPath)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("ENVSYNC_REDIS_DB", "not-a-number")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENVSYNC_REDIS_DB")
}

func TestLoader_InvalidEnvPairs(t *testing.T) {
	t.Setenv("ENVSYNC_ENV_MANAGED_DEFAULTS", "FEATURE_X")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KEY=VALUE")
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("ENVSYNC_SERVER_HTTP_PORT", "80")

	_, err := NewLoader().
		WithValidator(func(cfg *Config) error {
			if cfg.Server.HTTPPort < 1024 {
				return assert.AnError
			}
			return nil
		}).
		Load()
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/config.yaml").
		Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_port: [invalid
  this is not valid yaml
`)

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{name: "negative HTTP port", modify: func(c *Config) { c.Server.HTTPPort = -1 }, wantErr: "invalid HTTP port"},
		{name: "HTTP port too large", modify: func(c *Config) { c.Server.HTTPPort = 70000 }, wantErr: "invalid HTTP port"},
		{name: "empty redis addr", modify: func(c *Config) { c.Redis.Addr = "" }, wantErr: "redis addr"},
		{name: "zero redis retries", modify: func(c *Config) { c.Redis.ConnectRetries = 0 }, wantErr: "redis connect_retries"},
		{name: "unknown driver", modify: func(c *Config) { c.Database.Driver = "oracle" }, wantErr: "unsupported database driver"},
		{name: "zero db retries", modify: func(c *Config) { c.Database.ConnectRetries = 0 }, wantErr: "database connect_retries"},
		{name: "sample rate too high", modify: func(c *Config) { c.Telemetry.SampleRate = 1.5 }, wantErr: "sample_rate"},
		{name: "empty secret", modify: func(c *Config) { c.Auth.SecretKey = "" }, wantErr: "secret_key"},
		{name: "superuser without password", modify: func(c *Config) { c.Auth.FirstSuperuser = "admin" }, wantErr: "first_superuser_password"},
		{name: "empty bootstrap path", modify: func(c *Config) { c.Env.BootstrapPath = "" }, wantErr: "bootstrap_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.HTTPPort = 0
	cfg.Redis.Addr = ""
	cfg.Env.BootstrapPath = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
	assert.Contains(t, err.Error(), "redis addr is required")
	assert.Contains(t, err.Error(), "bootstrap_path")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres DSN",
			config: DatabaseConfig{
				Driver: "postgres", Host: "localhost", Port: 5432,
				User: "user", Password: "pass", Name: "dbname", SSLMode: "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=dbname sslmode=disable",
		},
		{
			name: "mysql DSN",
			config: DatabaseConfig{
				Driver: "mysql", Host: "localhost", Port: 3306,
				User: "user", Password: "pass", Name: "dbname",
			},
			expected: "user:pass@tcp(localhost:3306)/dbname?parseTime=true",
		},
		{
			name:     "sqlite DSN",
			config:   DatabaseConfig{Driver: "sqlite", Name: "/path/to/db.sqlite"},
			expected: "/path/to/db.sqlite",
		},
		{
			name:     "sqlite3 DSN",
			config:   DatabaseConfig{Driver: "sqlite3", Name: "envsync.db"},
			expected: "envsync.db",
		},
		{
			name:     "unknown driver",
			config:   DatabaseConfig{Driver: "unknown"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

// --- MustLoad 测试 ---

func TestMustLoad_Success(t *testing.T) {
	configPath := writeConfig(t, "server:\n  http_port: 8080\n")

	assert.NotPanics(t, func() {
		cfg := MustLoad(configPath)
		assert.Equal(t, 8080, cfg.Server.HTTPPort)
	})
}

func TestMustLoad_InvalidFile(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml")

	assert.Panics(t, func() {
		MustLoad(configPath)
	})
}

func TestLoadFromEnv_Function(t *testing.T) {
	t.Setenv("ENVSYNC_ENV_BOOTSTRAP_PATH", "/srv/.env")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/srv/.env", cfg.Env.BootstrapPath)
}
