package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/envsync/config"
	"github.com/BaSui01/envsync/internal/auth"
	"github.com/BaSui01/envsync/internal/lifecycle"
)

// =============================================================================
// 🧪 路由与中间件链端到端测试（sqlite + miniredis）
// =============================================================================

type routerFixture struct {
	handler http.Handler
	mr      *miniredis.Miniredis
	cfg     *config.Config
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Name = filepath.Join(dir, "envsync.db")
	cfg.Database.MaxOpenConns = 1
	cfg.Database.MaxIdleConns = 1
	cfg.Database.ConnectRetries = 1
	cfg.Database.HealthCheckInterval = 0
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.ConnectRetries = 1
	cfg.Redis.MaxRetries = -1
	cfg.Redis.OpTimeout = time.Second
	cfg.Redis.HealthCheckInterval = 0
	cfg.Server.RateLimitRPS = 0
	cfg.Env.BootstrapPath = filepath.Join(dir, ".env")
	cfg.Auth.SecretKey = "test-secret"
	cfg.Auth.FirstSuperuser = "admin"
	cfg.Auth.FirstSuperuserEmail = "admin@example.com"
	cfg.Auth.FirstSuperuserPassword = "changethis123"
	require.NoError(t, cfg.Validate())
	require.NoError(t, os.WriteFile(cfg.Env.BootstrapPath, []byte("GREETING=hello\n"), 0o644))

	ctx := context.Background()
	res, err := lifecycle.OpenResources(ctx, cfg, nil, zap.NewNop())
	require.NoError(t, err)
	app := lifecycle.New(cfg, res, nil, zap.NewNop())
	require.NoError(t, app.Startup(ctx))
	t.Cleanup(func() { app.Shutdown(context.Background()) })

	handler, cancel := newRouter(app, cfg, nil, zap.NewNop())
	t.Cleanup(cancel)
	return &routerFixture{handler: handler, mr: mr, cfg: cfg}
}

func (f *routerFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

func (f *routerFixture) login(t *testing.T, username, password string) string {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	r := httptest.NewRequest(http.MethodPost, "/login/access-token", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var token auth.Token
	require.NoError(t, json.NewDecoder(w.Body).Decode(&token))
	return token.AccessToken
}

func TestRouter_HealthAndVersion(t *testing.T) {
	f := newRouterFixture(t)

	for _, path := range []string{"/", "/health", "/healthz", "/ready", "/version"} {
		w := f.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"), path)
	}

	// 就绪响应附带连接池统计
	ready := f.do(t, http.MethodGet, "/ready", "", nil)
	assert.Contains(t, ready.Body.String(), `"max_open_connections":1`)

	f.mr.Close()
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/ready", "", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "", nil).Code)
}

func TestRouter_EnvRequiresAuthentication(t *testing.T) {
	f := newRouterFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/env", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/env/GREETING", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/env", "", map[string]any{"key": "X", "value": "1"}).Code)
}

func TestRouter_SuperuserManagesVariables(t *testing.T) {
	f := newRouterFixture(t)
	token := f.login(t, "admin", "changethis123")

	w := f.do(t, http.MethodGet, "/api/env/GREETING", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"value":"hello"`)

	w = f.do(t, http.MethodPost, "/api/env", token, map[string]any{"key": "FEATURE_FLAG", "value": "on"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	cached, err := f.mr.Get("env:FEATURE_FLAG")
	require.NoError(t, err)
	assert.Equal(t, "on", cached)

	w = f.do(t, http.MethodDelete, "/api/env/FEATURE_FLAG", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRouter_RegularUserIsReadOnly(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(t, http.MethodPost, "/users/signup", "", map[string]any{
		"username": "reader", "email": "reader@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := f.login(t, "reader", "password123")

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/env", token, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/users/me", token, nil).Code)

	w = f.do(t, http.MethodPut, "/api/env/GREETING", token, map[string]any{"value": "bye"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "FORBIDDEN")
}

func TestRouter_CORSOriginsFollowStoredValue(t *testing.T) {
	f := newRouterFixture(t)
	token := f.login(t, "admin", "changethis123")

	preflight := func(origin string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodOptions, "/api/env", nil)
		r.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		f.handler.ServeHTTP(w, r)
		return w
	}

	assert.Equal(t, http.StatusNoContent, preflight("http://localhost:5173").Code)
	assert.Equal(t, http.StatusForbidden, preflight("https://app.example.com").Code)

	w := f.do(t, http.MethodPut, "/api/env/CORS_ORIGINS", token, map[string]any{"value": "https://app.example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = preflight("https://app.example.com")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
