package http_test

import (
	"net/http/httptest"
	"testing"

	pkghttp "github.com/BradenHooton/tourney/pkg/http"
	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP_DirectConnection_IgnoresHeaders(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/forgot-password", nil)
	req.RemoteAddr = "203.0.113.10:54321"
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	req.Header.Set("X-Real-IP", "192.168.1.1")

	config := pkghttp.NewIPConfig([]string{"10.0.0.0/8", "127.0.0.1/32"})

	assert.Equal(t, "203.0.113.10", pkghttp.ExtractClientIP(req, config))
}

func TestExtractClientIP_TrustedProxy_UsesFirstForwardedAddress(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/forgot-password", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	req.Header.Set("X-Forwarded-For", "not-an-ip, 203.0.113.42, 10.0.0.5")

	config := pkghttp.NewIPConfig([]string{"10.0.0.0/8"})

	assert.Equal(t, "203.0.113.42", pkghttp.ExtractClientIP(req, config))
}

func TestExtractClientIP_TrustedProxy_FallsBackToRealIP(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/forgot-password", nil)
	req.RemoteAddr = "[::1]:54321"
	req.Header.Set("X-Real-IP", "2001:db8::1")

	config := pkghttp.NewIPConfig([]string{"::1/128"})

	assert.Equal(t, "2001:db8::1", pkghttp.ExtractClientIP(req, config))
}

func TestExtractClientIP_NilAndInvalidConfig_UseRemoteAddr(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/forgot-password", nil)
	req.RemoteAddr = "203.0.113.10:54321"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")

	assert.Equal(t, "203.0.113.10", pkghttp.ExtractClientIP(req, nil))
	assert.Equal(t, "203.0.113.10", pkghttp.ExtractClientIP(req, pkghttp.NewIPConfig([]string{"invalid-cidr"})))
}

func TestExtractClientIP_RemoteAddrWithoutPort(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/forgot-password", nil)
	req.RemoteAddr = "203.0.113.10"

	assert.Equal(t, "203.0.113.10", pkghttp.ExtractClientIP(req, nil))
}
