package middleware

import (
	"net/http"
	"time"

	"github.com/BradenHooton/tourney/internal/auth"
	pkghttp "github.com/BradenHooton/tourney/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	IPConfig          *pkghttp.IPConfig
}

// DefaultRecoveryRateLimit returns the per-IP limit for the public recovery endpoints
func DefaultRecoveryRateLimit(ipConfig *pkghttp.IPConfig) RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
		IPConfig:          ipConfig,
	}
}

// RateLimitByIP limits requests per client IP. Forwarding headers are only honoured when the
// immediate peer is a trusted proxy.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}

// RateLimitByUserID limits authenticated requests per user, falling back to the client IP when
// no claims are present. Must run after auth.AuthMiddleware.
func RateLimitByUserID(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if claims := auth.GetUserFromContext(r); claims != nil && claims.UserID != "" {
				return "user:" + claims.UserID, nil
			}
			return "ip:" + pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}

func limitExceeded(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteTooManyRequestsRetryAfter(w, "Too many requests. Please slow down.", time.Minute)
}
