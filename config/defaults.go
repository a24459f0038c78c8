// =============================================================================
// 📦 EnvSync 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// InsecureDefaultSecret 默认签名密钥，生产环境必须覆盖
const InsecureDefaultSecret = "changethis"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Auth:      DefaultAuthConfig(),
		Env:       DefaultEnvConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		CORSOrigins:     []string{"http://localhost:5173"},
		RateLimitRPS:    100,
		RateLimitBurst:  200,
		MaxConnections:  0,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:                "localhost:6379",
		Password:            "",
		DB:                  0,
		PoolSize:            10,
		MinIdleConns:        2,
		MaxRetries:          3,
		ConnectRetries:      3,
		ConnectRetryDelay:   2 * time.Second,
		OpTimeout:           5 * time.Second,
		KeyPrefix:           "env:",
		TLSEnabled:          false,
		HealthCheckInterval: 30 * time.Second,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:              "postgres",
		Host:                "localhost",
		Port:                5432,
		User:                "envsync",
		Password:            "",
		Name:                "envsync",
		SSLMode:             "disable",
		MaxOpenConns:        25,
		MaxIdleConns:        5,
		ConnMaxLifetime:     5 * time.Minute,
		ConnectRetries:      3,
		ConnectRetryDelay:   2 * time.Second,
		SlowThreshold:       200 * time.Millisecond,
		HealthCheckInterval: 30 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "envsync",
		SampleRate:   0.1,
	}
}

// DefaultAuthConfig 返回默认认证配置
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		SecretKey:                InsecureDefaultSecret,
		Issuer:                   "envsync",
		AccessTokenExpireMinutes: 60 * 24 * 8,
	}
}

// DefaultEnvConfig 返回默认同步配置
func DefaultEnvConfig() EnvConfig {
	return EnvConfig{
		BootstrapPath:    ".env",
		ExportOnShutdown: true,
		ManagedKeys:      []string{"CORS_ORIGINS", "ACCESS_TOKEN_EXPIRE_MINUTES"},
	}
}
