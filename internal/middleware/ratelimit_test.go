package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedHandler(mw *RateLimitMiddleware) http.Handler {
	return mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hit(handler http.Handler, method, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitMiddleware_UnlimitedGeneral(t *testing.T) {
	handler := limitedHandler(NewRateLimitMiddleware(0, 1))

	for i := 0; i < 20; i++ {
		rec := hit(handler, http.MethodGet, "/api/v1/users/?q=ada", "")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestRateLimitMiddleware_CredentialBucket(t *testing.T) {
	handler := limitedHandler(NewRateLimitMiddleware(0, 1))

	assert.Equal(t, http.StatusOK, hit(handler, http.MethodPost, "/api/v1/auth/login", "").Code)

	rec := hit(handler, http.MethodPost, "/api/v1/auth/login", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")

	assert.Equal(t, http.StatusOK, hit(handler, http.MethodGet, "/api/v1/users/1", "").Code,
		"general traffic does not share the credential bucket")
}

func TestRateLimitMiddleware_Refill(t *testing.T) {
	mw := NewRateLimitMiddleware(0, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mw.now = func() time.Time { return now }
	handler := limitedHandler(mw)

	assert.Equal(t, http.StatusOK, hit(handler, http.MethodPost, "/api/v1/auth/refresh", "").Code)
	assert.Equal(t, http.StatusOK, hit(handler, http.MethodPost, "/api/v1/auth/refresh", "").Code)

	rec := hit(handler, http.MethodPost, "/api/v1/auth/refresh", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	now = now.Add(31 * time.Second)
	assert.Equal(t, http.StatusOK, hit(handler, http.MethodPost, "/api/v1/auth/refresh", "").Code)
}

func TestRateLimitMiddleware_Defaults(t *testing.T) {
	mw := NewRateLimitMiddleware(-1, 0)
	assert.Nil(t, mw.general)
	require.NotNil(t, mw.credential)
	assert.Equal(t, 10, mw.credential.burst)
}

func TestRateLimitMiddleware_PerClient(t *testing.T) {
	handler := limitedHandler(NewRateLimitMiddleware(0, 1))

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		rec := hit(handler, http.MethodPost, "/api/v1/auth/login", ip+", 172.16.0.1")
		assert.Equal(t, http.StatusOK, rec.Code, "client %s has its own bucket", ip)
	}

	rec := hit(handler, http.MethodPost, "/api/v1/auth/refresh", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitMiddleware_SweepsIdleClients(t *testing.T) {
	mw := NewRateLimitMiddleware(0, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mw.now = func() time.Time { return now }
	handler := limitedHandler(mw)

	hit(handler, http.MethodPost, "/api/v1/auth/login", "10.0.0.1")
	require.Len(t, mw.clients, 1)

	now = now.Add(idleClientTTL + time.Minute)
	hit(handler, http.MethodPost, "/api/v1/auth/login", "10.0.0.2")
	assert.Len(t, mw.clients, 1)
	assert.Contains(t, mw.clients, "10.0.0.2")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	assert.Equal(t, "192.0.2.10", ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", ClientIP(req))

	req.Header.Set("X-Forwarded-For", " , 10.0.0.1")
	assert.Equal(t, "198.51.100.7", ClientIP(req))
}
