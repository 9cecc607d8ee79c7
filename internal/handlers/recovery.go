package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/BradenHooton/tourney/internal/auth"
	"github.com/BradenHooton/tourney/internal/models"
	"github.com/BradenHooton/tourney/internal/services"
	pkghttp "github.com/BradenHooton/tourney/pkg/http"
	"github.com/go-chi/chi/v5"
)

// RecoveryServiceInterface defines the password recovery business logic
type RecoveryServiceInterface interface {
	ForgotPassword(ctx context.Context, email string, meta services.RequestMeta) (*services.RecoveryResult, error)
	AttemptStatus(ctx context.Context, email string) (models.AttemptStatus, error)
	ResetPassword(ctx context.Context, token, newPassword string, meta services.RequestMeta) error
	ClearAttempts(ctx context.Context, email, actorID string) error
}

// RecoveryHandler handles the forgot-password HTTP endpoints
type RecoveryHandler struct {
	service  RecoveryServiceInterface
	ipConfig *pkghttp.IPConfig
	floor    *auth.ResponseFloor
}

// NewRecoveryHandler creates a new RecoveryHandler. floor may be nil to disable response padding.
func NewRecoveryHandler(service RecoveryServiceInterface, ipConfig *pkghttp.IPConfig, floor *auth.ResponseFloor) *RecoveryHandler {
	return &RecoveryHandler{
		service:  service,
		ipConfig: ipConfig,
		floor:    floor,
	}
}

// Request DTOs

// ForgotPasswordRequest represents the request body for a reset link
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// ResetPasswordRequest represents the request body for choosing a new password
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required,max=128"`
	NewPassword string `json:"new_password" validate:"required,max=72"`
}

// Response DTOs

// ForgotPasswordResponse is returned for every accepted request, whether or not the account exists
type ForgotPasswordResponse struct {
	Message           string `json:"message"`
	RemainingAttempts int    `json:"remaining_attempts"`
}

// AttemptStatusResponse reports the limiter state for display on the forgot-password screen
type AttemptStatusResponse struct {
	Allowed                  bool   `json:"allowed"`
	RemainingAttempts        int    `json:"remaining_attempts"`
	AttemptsMade             int    `json:"attempts_made"`
	CooldownRemainingSeconds *int64 `json:"cooldown_remaining_seconds"`
}

// MessageResponse carries a human-readable confirmation
type MessageResponse struct {
	Message string `json:"message"`
}

const forgotPasswordAccepted = "If an account exists for this email, a password reset link has been sent."

// ForgotPassword handles requests for a password reset link
// @Summary Request a password reset link
// @Accept json
// @Param request body ForgotPasswordRequest true "Forgot password request"
// @Produce json
// @Success 202 {object} ForgotPasswordResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 429 {object} pkghttp.ErrorResponse
// @Failure 503 {object} pkghttp.ErrorResponse
// @Router /auth/forgot-password [post]
func (h *RecoveryHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.ForgotPassword(r.Context(), req.Email, h.requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRateLimitExceeded):
			writeCooldown(w, result)
		case errors.Is(err, models.ErrStoreUnavailable):
			pkghttp.WriteServiceUnavailable(w, "Password recovery is temporarily unavailable. Please try again later.")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "A valid email is required")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	h.floor.WaitFrom(r.Context(), start)

	pkghttp.WriteJSON(w, http.StatusAccepted, ForgotPasswordResponse{
		Message:           forgotPasswordAccepted,
		RemainingAttempts: result.Status.Remaining,
	})
}

// AttemptStatus reports remaining attempts and cooldown for an email without counting an attempt
// @Summary Forgot-password attempt status
// @Param email query string true "Email address"
// @Produce json
// @Success 200 {object} AttemptStatusResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 503 {object} pkghttp.ErrorResponse
// @Router /auth/forgot-password/status [get]
func (h *RecoveryHandler) AttemptStatus(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if err := validateEmail(email); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	status, err := h.service.AttemptStatus(r.Context(), email)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrStoreUnavailable):
			pkghttp.WriteServiceUnavailable(w, "Password recovery is temporarily unavailable. Please try again later.")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "A valid email is required")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toAttemptStatusResponse(status))
}

// ResetPassword consumes a reset token and sets a new password
// @Summary Reset password with a token from the reset email
// @Accept json
// @Param request body ResetPasswordRequest true "Reset password request"
// @Produce json
// @Success 200 {object} MessageResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /auth/reset-password [post]
func (h *RecoveryHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword, h.requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidToken),
			errors.Is(err, models.ErrAccountInactive):
			pkghttp.WriteError(w, http.StatusBadRequest, "invalid_token", "This reset link is invalid or has expired")
		case errors.Is(err, models.ErrInvalidPassword):
			pkghttp.WriteError(w, http.StatusBadRequest, "invalid_password", "Password does not meet the security requirements")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Your password has been reset"})
}

// ClearAttempts removes the forgot-password counter for an email. Admin only.
// @Summary Clear forgot-password attempts
// @Param email path string true "Email address"
// @Success 204
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 503 {object} pkghttp.ErrorResponse
// @Router /admin/recovery-attempts/{email} [delete]
func (h *RecoveryHandler) ClearAttempts(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid email")
		return
	}
	if err := validateEmail(email); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	var actorID string
	if claims := auth.GetUserFromContext(r); claims != nil {
		actorID = claims.UserID
	}

	if err := h.service.ClearAttempts(r.Context(), email, actorID); err != nil {
		switch {
		case errors.Is(err, models.ErrStoreUnavailable):
			pkghttp.WriteServiceUnavailable(w, "Attempt store is unavailable")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "A valid email is required")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RecoveryHandler) requestMeta(r *http.Request) services.RequestMeta {
	return services.RequestMeta{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	}
}

// writeCooldown writes a 429 carrying the remaining cooldown
func writeCooldown(w http.ResponseWriter, result *services.RecoveryResult) {
	const message = "Too many password reset requests. Please try again later."

	if result == nil || result.Status.CooldownRemaining == nil {
		pkghttp.WriteTooManyRequests(w, message)
		return
	}
	pkghttp.WriteTooManyRequestsRetryAfter(w, message, *result.Status.CooldownRemaining)
}

func toAttemptStatusResponse(status models.AttemptStatus) AttemptStatusResponse {
	resp := AttemptStatusResponse{
		Allowed:           status.Allowed,
		RemainingAttempts: status.Remaining,
		AttemptsMade:      status.AttemptsMade,
	}
	if status.CooldownRemaining != nil {
		seconds := int64(math.Ceil(status.CooldownRemaining.Seconds()))
		resp.CooldownRemainingSeconds = &seconds
	}
	return resp
}
