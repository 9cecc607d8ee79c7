package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/tourney/internal/auth"
	"github.com/BradenHooton/tourney/internal/models"
	pkghttp "github.com/BradenHooton/tourney/pkg/http"
	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitByIP_Returns429AfterLimit(t *testing.T) {
	handler := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 2})(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/forgot-password", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)

		if w.Code == http.StatusTooManyRequests {
			assert.Equal(t, "60", w.Header().Get("Retry-After"))
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitByIP_IgnoresSpoofedForwardedFor(t *testing.T) {
	handler := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 1})(okHandler())

	first := httptest.NewRequest(http.MethodPost, "/", nil)
	first.RemoteAddr = "203.0.113.9:5555"
	first.Header.Set("X-Forwarded-For", "198.51.100.1")
	handler.ServeHTTP(httptest.NewRecorder(), first)

	second := httptest.NewRequest(http.MethodPost, "/", nil)
	second.RemoteAddr = "203.0.113.9:5555"
	second.Header.Set("X-Forwarded-For", "198.51.100.2")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, second)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimitByIP_TrustedProxyKeysOnClient(t *testing.T) {
	config := RateLimitConfig{RequestsPerMinute: 1, IPConfig: pkghttp.NewIPConfig([]string{"10.0.0.0/8"})}
	handler := RateLimitByIP(config)(okHandler())

	for _, client := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "10.0.0.5:443"
		req.Header.Set("X-Forwarded-For", client)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, client)
	}
}

func TestRateLimitByUserID_SeparatesUsers(t *testing.T) {
	handler := RateLimitByUserID(RateLimitConfig{RequestsPerMinute: 1})(okHandler())

	send := func(userID string) int {
		req := httptest.NewRequest(http.MethodDelete, "/admin/recovery-attempts/a@x.com", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		claims := &models.TokenClaims{UserID: userID, Type: auth.TokenTypeAccess}
		req = req.WithContext(context.WithValue(req.Context(), auth.UserContextKey, claims))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("admin-1"))
	assert.Equal(t, http.StatusOK, send("admin-2"))
	assert.Equal(t, http.StatusTooManyRequests, send("admin-1"))
}
