package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/tourney/internal/models"
	pkgauth "github.com/BradenHooton/tourney/pkg/auth"
	pkglogger "github.com/BradenHooton/tourney/pkg/logger"
)

// UserRepository defines the user operations the recovery flow needs
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// PasswordResetRepository defines the interface for password reset token operations
type PasswordResetRepository interface {
	Create(ctx context.Context, userID, tokenHash, email string, expiresAt time.Time) (*models.PasswordResetToken, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	MarkAsUsed(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
}

// AttemptCounter is the limiter surface the recovery flow depends on
type AttemptCounter interface {
	Status(ctx context.Context, key string) (models.AttemptStatus, error)
	TryRecordAttempt(ctx context.Context, key string) (models.AttemptStatus, error)
	Reset(ctx context.Context, key string) error
}

// RecoveryResult is returned from ForgotPassword. It is identical for known and unknown emails.
type RecoveryResult struct {
	Status models.AttemptStatus
}

// RequestMeta carries client details for audit logging
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// PasswordRecoveryService handles the forgot-password and reset-password flows
type PasswordRecoveryService struct {
	userRepo     UserRepository
	resetRepo    PasswordResetRepository
	limiter      AttemptCounter
	emailService EmailService
	auditLogger  *pkglogger.AuditLogger
	logger       *slog.Logger
	tokenExpiry  time.Duration
}

// NewPasswordRecoveryService creates a new PasswordRecoveryService
func NewPasswordRecoveryService(
	userRepo UserRepository,
	resetRepo PasswordResetRepository,
	limiter AttemptCounter,
	emailService EmailService,
	auditLogger *pkglogger.AuditLogger,
	logger *slog.Logger,
	tokenExpiry time.Duration,
) *PasswordRecoveryService {
	return &PasswordRecoveryService{
		userRepo:     userRepo,
		resetRepo:    resetRepo,
		limiter:      limiter,
		emailService: emailService,
		auditLogger:  auditLogger,
		logger:       logger,
		tokenExpiry:  tokenExpiry,
	}
}

// ForgotPassword counts a recovery request against email and, if the email belongs to an active
// account, issues a reset token and mails it. The counter is never reset by a successful request.
//
// A cooling email yields models.ErrRateLimitExceeded together with the cooling status. Lookup and
// delivery failures are logged but not returned so that callers cannot tell accounts apart.
func (s *PasswordRecoveryService) ForgotPassword(ctx context.Context, email string, meta RequestMeta) (*RecoveryResult, error) {
	email = NormalizeKey(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", models.ErrBadRequest)
	}

	status, err := s.limiter.TryRecordAttempt(ctx, email)
	if err != nil {
		if !status.Allowed {
			return &RecoveryResult{Status: status}, err
		}
		s.logger.Warn("attempt store unavailable, allowing recovery request",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
	}

	if !status.Allowed {
		s.auditLogger.LogRecoveryEvent(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventPasswordResetThrottled,
			Email:         email,
			IPAddress:     meta.IPAddress,
			UserAgent:     meta.UserAgent,
			Success:       false,
			FailureReason: "cooldown_active",
			Metadata:      cooldownMetadata(status),
		})
		return &RecoveryResult{Status: status}, models.ErrRateLimitExceeded
	}

	event := pkglogger.AuditEvent{
		EventType: pkglogger.EventPasswordResetRequested,
		Email:     email,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	}
	if reason := s.issueResetToken(ctx, email, &event); reason != "" {
		event.Success = false
		event.FailureReason = reason
	}
	s.auditLogger.LogRecoveryEvent(ctx, event)

	return &RecoveryResult{Status: status}, nil
}

// issueResetToken creates and mails a reset token. It returns a non-empty failure reason when no
// email was sent.
func (s *PasswordRecoveryService) issueResetToken(ctx context.Context, email string, event *pkglogger.AuditEvent) string {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "unknown_email"
		}
		s.logger.Error("failed to look up user for password reset",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return "lookup_failed"
	}
	event.UserID = user.ID

	if !user.IsActive() {
		s.logger.Info("password reset requested for inactive account",
			slog.String("user_id", user.ID),
			slog.String("status", user.Status))
		return "account_inactive"
	}

	plainToken, tokenHash, err := pkgauth.GenerateResetToken()
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.Any("error", err))
		return "token_generation_failed"
	}

	// Only the newest link stays usable
	if err := s.resetRepo.DeleteByUserID(ctx, user.ID); err != nil {
		s.logger.Warn("failed to invalidate previous reset tokens",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}

	expiresAt := time.Now().Add(s.tokenExpiry)
	if _, err := s.resetRepo.Create(ctx, user.ID, tokenHash, email, expiresAt); err != nil {
		s.logger.Error("failed to store reset token",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return "token_storage_failed"
	}

	if err := s.emailService.SendPasswordResetEmail(ctx, email, plainToken, expiresAt); err != nil {
		s.logger.Error("failed to send password reset email",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return "email_delivery_failed"
	}

	return ""
}

// AttemptStatus reports the remaining requests and cooldown for email without counting one
func (s *PasswordRecoveryService) AttemptStatus(ctx context.Context, email string) (models.AttemptStatus, error) {
	email = NormalizeKey(email)
	if email == "" {
		return models.AttemptStatus{}, fmt.Errorf("%w: email is required", models.ErrBadRequest)
	}

	status, err := s.limiter.Status(ctx, email)
	if err != nil {
		if !status.Allowed {
			return status, err
		}
		s.logger.Warn("attempt store unavailable, reporting fresh attempt status",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
	}

	return status, nil
}

// ResetPassword consumes a reset token and sets a new password for its owner
func (s *PasswordRecoveryService) ResetPassword(ctx context.Context, plainToken, newPassword string, meta RequestMeta) error {
	if plainToken == "" {
		return models.ErrInvalidToken
	}

	token, err := s.resetRepo.GetByTokenHash(ctx, pkgauth.HashResetToken(plainToken))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("reset token not found")
			return models.ErrInvalidToken
		}
		s.logger.Error("failed to retrieve reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if token.IsUsed() {
		s.logger.Warn("attempt to reuse reset token", slog.String("token_id", token.ID))
		s.auditReset(ctx, token, meta, "token_reused")
		return models.ErrInvalidToken
	}
	if token.IsExpired() {
		s.logger.Info("reset token expired",
			slog.String("token_id", token.ID),
			slog.Time("expires_at", token.ExpiresAt))
		s.auditReset(ctx, token, meta, "token_expired")
		return models.ErrInvalidToken
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %w", models.ErrInvalidPassword, err)
	}

	user, err := s.userRepo.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInvalidToken
		}
		s.logger.Error("failed to retrieve user for password reset",
			slog.String("user_id", token.UserID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !user.IsActive() {
		s.auditReset(ctx, token, meta, "account_inactive")
		return models.ErrAccountInactive
	}

	passwordHash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	// Claim the token before changing anything so a concurrent reset with the same link loses
	if err := s.resetRepo.MarkAsUsed(ctx, token.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInvalidToken
		}
		s.logger.Error("failed to mark reset token as used",
			slog.String("token_id", token.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.userRepo.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		s.logger.Error("failed to update password",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.resetRepo.DeleteByUserID(ctx, user.ID); err != nil {
		s.logger.Warn("failed to invalidate remaining reset tokens",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}

	s.auditReset(ctx, token, meta, "")
	s.logger.Info("password reset completed", slog.String("user_id", user.ID))

	return nil
}

// ClearAttempts removes the recovery counter for email. Admin only.
func (s *PasswordRecoveryService) ClearAttempts(ctx context.Context, email, actorID string) error {
	email = NormalizeKey(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", models.ErrBadRequest)
	}

	if err := s.limiter.Reset(ctx, email); err != nil {
		s.logger.Error("failed to clear recovery attempts",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return err
	}

	s.auditLogger.LogRecoveryEvent(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventRecoveryAttemptsClear,
		Email:     email,
		Success:   true,
		Metadata:  map[string]string{"actor_id": actorID},
	})

	return nil
}

func (s *PasswordRecoveryService) auditReset(ctx context.Context, token *models.PasswordResetToken, meta RequestMeta, failureReason string) {
	s.auditLogger.LogRecoveryEvent(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventPasswordResetCompleted,
		Email:         token.Email,
		UserID:        token.UserID,
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
		Success:       failureReason == "",
		FailureReason: failureReason,
	})
}

func cooldownMetadata(status models.AttemptStatus) map[string]string {
	if status.CooldownRemaining == nil {
		return nil
	}
	return map[string]string{"cooldown_remaining": status.CooldownRemaining.Round(time.Second).String()}
}
