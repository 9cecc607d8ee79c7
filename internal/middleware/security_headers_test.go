package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders_Defaults(t *testing.T) {
	handler := SecurityHeaders(SecurityHeadersConfig{Env: "development"})(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	tests := []struct {
		header   string
		expected string
	}{
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "no-referrer"},
		{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
		{"Cache-Control", "no-store"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, w.Header().Get(tt.header), tt.header)
	}
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestSecurityHeaders_HSTSOnlyOverHTTPSInProduction(t *testing.T) {
	handler := SecurityHeaders(SecurityHeadersConfig{Env: "production"})(okHandler())

	plain := httptest.NewRecorder()
	handler.ServeHTTP(plain, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, plain.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	secure := httptest.NewRecorder()
	handler.ServeHTTP(secure, req)
	assert.Equal(t, "max-age=31536000; includeSubDomains", secure.Header().Get("Strict-Transport-Security"))
}
