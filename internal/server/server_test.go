package server

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-shop/internal/config"
	"go-shop/internal/session"
	"go-shop/internal/shopapi"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "0",
			Env:            "production",
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Storefront: config.StorefrontConfig{
			Port:        "0",
			SettleAfter: time.Second,
			SettleEvery: time.Second,
		},
		RateLimit: config.RateLimitConfig{Requests: 1, Window: time.Minute},
	}
}

func serve(t *testing.T, h http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(`{}`))
	req.RemoteAddr = "10.0.0.1:1234"
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_RoutesAndCORS(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer remote.Close()

	client := shopapi.NewClient(config.RemoteConfig{BaseURL: remote.URL}, zap.NewNop())
	sess := session.New(client, time.Hour, zap.NewNop())
	require.NoError(t, sess.Refresh(context.Background()))

	srv := NewServer(testConfig(), zap.NewNop(), sess)
	defer srv.Close()

	assert.Equal(t, ":0", srv.Addr)
	assert.Equal(t, http.StatusOK, serve(t, srv.Handler, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, serve(t, srv.Handler, http.MethodGet, "/api/cart", nil).Code)

	w := serve(t, srv.Handler, http.MethodOptions, "/api/cart", map[string]string{
		"Origin":                        "http://localhost:5173",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(t, srv.Handler, http.MethodGet, "/api/cart", map[string]string{"Origin": "http://evil.example"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

// fakeDatabase answers health checks without a real pool.
type fakeDatabase struct {
	status string
	closed bool
}

func (f *fakeDatabase) DB() *sql.DB { return nil }

func (f *fakeDatabase) Health(ctx context.Context) map[string]string {
	return map[string]string{"status": f.status}
}

func (f *fakeDatabase) Close() error {
	f.closed = true
	return nil
}

func TestStorefrontServer_Health(t *testing.T) {
	db := &fakeDatabase{status: "down"}
	srv := NewStorefrontServer(testConfig(), zap.NewNop(), db, nil)

	assert.Equal(t, http.StatusServiceUnavailable, serve(t, srv.Handler, http.MethodGet, "/health", nil).Code)
	db.status = "up"
	assert.Equal(t, http.StatusOK, serve(t, srv.Handler, http.MethodGet, "/health", nil).Code)

	require.NoError(t, srv.Close())
	assert.True(t, db.closed)
}

func TestStorefrontServer_RateLimitsOrderCreation(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	srv := NewStorefrontServer(testConfig(), zap.NewNop(), &fakeDatabase{status: "up"}, redisClient)
	defer srv.Close()

	// An empty body fails validation before any query runs.
	assert.Equal(t, http.StatusBadRequest, serve(t, srv.Handler, http.MethodPost, "/orders", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(t, srv.Handler, http.MethodPost, "/orders", nil).Code)
}
