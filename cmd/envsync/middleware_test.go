package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/envsync/internal/auth"
	"github.com/BaSui01/envsync/types"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestSecurityHeaders(t *testing.T) {
	w := serve(SecurityHeaders()(okHandler()), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
}

func TestRequestID(t *testing.T) {
	var seen string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = types.RequestID(r.Context())
	}), SecurityHeaders(), RequestID())

	w := serve(h, httptest.NewRequest(http.MethodGet, "/test", nil))
	generated := w.Header().Get("X-Request-ID")
	_, err := uuid.Parse(generated)
	require.NoError(t, err)
	assert.Equal(t, generated, seen)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	r.Header.Set("X-Request-ID", "client-id")
	w = serve(h, r)
	assert.Equal(t, "client-id", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "client-id", seen)
}

func TestRecovery(t *testing.T) {
	h := Recovery(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := serve(h, httptest.NewRequest(http.MethodGet, "/api/env", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/api/env", "/api/env"},
		{"/api/env/backups", "/api/env/backups"},
		{"/api/env/sync/db-to-redis", "/api/env/sync/db-to-redis"},
		{"/api/env/DATABASE_URL", "/api/env/:key"},
		{"/api/env/a/b", "/unmatched"},
		{"/api/env/", "/unmatched"},
		{"/wp-login.php", "/unmatched"},
		{"/users/me", "/users/me"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.path))
		})
	}
}

func TestMetricsMiddleware_NilCollectorPassesThrough(t *testing.T) {
	w := serve(MetricsMiddleware(nil)(okHandler()), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "ok", w.Body.String())
}

func TestJWTAuthAndRequireSuperuser(t *testing.T) {
	tokens := auth.NewTokenIssuer("secret", "envsync", auth.FixedTTL(time.Hour))
	other := auth.NewTokenIssuer("other-secret", "envsync", auth.FixedTTL(time.Hour))
	ctx := context.Background()

	admin, err := tokens.Issue(ctx, uuid.New(), true)
	require.NoError(t, err)
	user, err := tokens.Issue(ctx, uuid.New(), false)
	require.NoError(t, err)
	forged, err := other.Issue(ctx, uuid.New(), true)
	require.NoError(t, err)

	h := Chain(okHandler(), JWTAuth(tokens, zap.NewNop()), RequireSuperuser(zap.NewNop()))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-token", http.StatusUnauthorized},
		{"foreign signature", "Bearer " + forged.AccessToken, http.StatusUnauthorized},
		{"regular user", "Bearer " + user.AccessToken, http.StatusForbidden},
		{"superuser", "Bearer " + admin.AccessToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/env", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := serve(h, r)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := RateLimiter(ctx, 1, 2, zap.NewNop())(okHandler())
	request := func(addr string) int {
		r := httptest.NewRequest(http.MethodGet, "/api/env", nil)
		r.RemoteAddr = addr
		return serve(h, r).Code
	}

	assert.Equal(t, http.StatusOK, request("10.0.0.1:1111"))
	assert.Equal(t, http.StatusOK, request("10.0.0.1:2222"))
	assert.Equal(t, http.StatusTooManyRequests, request("10.0.0.1:3333"))
	// 不同客户端独立计数
	assert.Equal(t, http.StatusOK, request("10.0.0.2:1111"))
}

func TestRateLimiter_DisabledWhenZero(t *testing.T) {
	h := RateLimiter(context.Background(), 0, 0, zap.NewNop())(okHandler())
	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
}

func TestCORS(t *testing.T) {
	origins := []string{"http://localhost:5173"}
	h := CORS(func(context.Context) []string { return origins })(okHandler())

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"no origin", http.MethodGet, "", http.StatusOK, ""},
		{"allowed simple", http.MethodGet, "http://localhost:5173", http.StatusOK, "http://localhost:5173"},
		{"allowed preflight", http.MethodOptions, "http://localhost:5173", http.StatusNoContent, "http://localhost:5173"},
		{"denied simple", http.MethodGet, "https://evil.example", http.StatusOK, ""},
		{"denied preflight", http.MethodOptions, "https://evil.example", http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/api/env", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			w := serve(h, r)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllow, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}

	// 来源列表在每次请求时读取
	origins = []string{"https://app.example.com"}
	r := httptest.NewRequest(http.MethodOptions, "/api/env", nil)
	r.Header.Set("Origin", "https://app.example.com")
	assert.Equal(t, http.StatusNoContent, serve(h, r).Code)
}
