package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/tourney/internal/auth"
	"github.com/BradenHooton/tourney/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-32-characters-long!!"

type stubUserRepo struct {
	user *models.User
	err  error
}

func (s *stubUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, time.Minute)

	token, err := tm.GenerateAccessToken("user-1", "admin@uni.edu", "admin")
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, auth.TokenTypeAccess, claims.Type)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_RejectsWrongSecret(t *testing.T) {
	token, err := auth.NewTokenManager("another-secret-of-sufficient-len", time.Minute).GenerateAccessToken("u", "e", "admin")
	require.NoError(t, err)

	_, err = auth.NewTokenManager(testSecret, time.Minute).ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, -time.Minute)
	token, err := tm.GenerateAccessToken("u", "e", "admin")
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, time.Minute)
	access, err := tm.GenerateAccessToken("user-1", "admin@uni.edu", "admin")
	require.NoError(t, err)

	refreshClaims := &models.TokenClaims{
		Type:   auth.TokenTypeRefresh,
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh, http.StatusUnauthorized},
		{"access token", "Bearer " + access, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			auth.AuthMiddleware(tm)(okHandler()).ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	withClaims := func(r *http.Request) *http.Request {
		ctx := context.WithValue(r.Context(), auth.UserContextKey, &models.TokenClaims{UserID: "user-1", Type: auth.TokenTypeAccess})
		return r.WithContext(ctx)
	}

	tests := []struct {
		name   string
		repo   *stubUserRepo
		claims bool
		want   int
	}{
		{"no claims", &stubUserRepo{}, false, http.StatusUnauthorized},
		{"unknown user", &stubUserRepo{err: models.ErrNotFound}, true, http.StatusUnauthorized},
		{"repository failure", &stubUserRepo{err: errors.New("db down")}, true, http.StatusInternalServerError},
		{"organizer", &stubUserRepo{user: &models.User{ID: "user-1", Role: "organizer", Status: models.UserStatusActive}}, true, http.StatusForbidden},
		{"suspended admin", &stubUserRepo{user: &models.User{ID: "user-1", Role: "admin", Status: models.UserStatusSuspended}}, true, http.StatusForbidden},
		{"admin", &stubUserRepo{user: &models.User{ID: "user-1", Role: "admin", Status: models.UserStatusActive}}, true, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/", nil)
			if tt.claims {
				req = withClaims(req)
			}
			w := httptest.NewRecorder()

			auth.RequireRole(tt.repo, "admin")(okHandler()).ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}
