package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/tourney/internal/auth"
	"github.com/BradenHooton/tourney/internal/models"
	"github.com/BradenHooton/tourney/internal/services"
	pkghttp "github.com/BradenHooton/tourney/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds user claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, userID, email, role string) *http.Request {
	claims := &models.TokenClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		Type:   auth.TokenTypeAccess,
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockRecoveryService implements RecoveryServiceInterface for testing
type MockRecoveryService struct {
	ForgotPasswordFunc func(ctx context.Context, email string, meta services.RequestMeta) (*services.RecoveryResult, error)
	AttemptStatusFunc  func(ctx context.Context, email string) (models.AttemptStatus, error)
	ResetPasswordFunc  func(ctx context.Context, token, newPassword string, meta services.RequestMeta) error
	ClearAttemptsFunc  func(ctx context.Context, email, actorID string) error
}

func (m *MockRecoveryService) ForgotPassword(ctx context.Context, email string, meta services.RequestMeta) (*services.RecoveryResult, error) {
	if m.ForgotPasswordFunc == nil {
		return &services.RecoveryResult{Status: models.AttemptStatus{Allowed: true, Remaining: 2, AttemptsMade: 1}}, nil
	}
	return m.ForgotPasswordFunc(ctx, email, meta)
}

func (m *MockRecoveryService) AttemptStatus(ctx context.Context, email string) (models.AttemptStatus, error) {
	if m.AttemptStatusFunc == nil {
		return models.AttemptStatus{Allowed: true, Remaining: 3}, nil
	}
	return m.AttemptStatusFunc(ctx, email)
}

func (m *MockRecoveryService) ResetPassword(ctx context.Context, token, newPassword string, meta services.RequestMeta) error {
	if m.ResetPasswordFunc == nil {
		return models.ErrInvalidToken
	}
	return m.ResetPasswordFunc(ctx, token, newPassword, meta)
}

func (m *MockRecoveryService) ClearAttempts(ctx context.Context, email, actorID string) error {
	if m.ClearAttemptsFunc == nil {
		return nil
	}
	return m.ClearAttemptsFunc(ctx, email, actorID)
}
