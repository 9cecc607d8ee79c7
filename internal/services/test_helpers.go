package services

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/tourney/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc        func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc     func(ctx context.Context, email string) (*models.User, error)
	UpdatePasswordFunc func(ctx context.Context, id, passwordHash string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

// MockPasswordResetRepository implements PasswordResetRepository for testing
type MockPasswordResetRepository struct {
	CreateFunc         func(ctx context.Context, userID, tokenHash, email string, expiresAt time.Time) (*models.PasswordResetToken, error)
	GetByTokenHashFunc func(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	MarkAsUsedFunc     func(ctx context.Context, id string) error
	DeleteByUserIDFunc func(ctx context.Context, userID string) error
}

func (m *MockPasswordResetRepository) Create(ctx context.Context, userID, tokenHash, email string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, tokenHash, email, expiresAt)
	}
	return &models.PasswordResetToken{
		ID:        "token-id",
		UserID:    userID,
		TokenHash: tokenHash,
		Email:     email,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

func (m *MockPasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	if m.GetByTokenHashFunc != nil {
		return m.GetByTokenHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockPasswordResetRepository) MarkAsUsed(ctx context.Context, id string) error {
	if m.MarkAsUsedFunc != nil {
		return m.MarkAsUsedFunc(ctx, id)
	}
	return nil
}

func (m *MockPasswordResetRepository) DeleteByUserID(ctx context.Context, userID string) error {
	if m.DeleteByUserIDFunc != nil {
		return m.DeleteByUserIDFunc(ctx, userID)
	}
	return nil
}

// SentEmail is a message captured by MockEmailService
type SentEmail struct {
	To        string
	Token     string
	ExpiresAt time.Time
}

// MockEmailService implements EmailService for testing and records every message
type MockEmailService struct {
	Err error

	mu   sync.Mutex
	sent []SentEmail
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentEmail{To: email, Token: token, ExpiresAt: expiresAt})
	return nil
}

// Sent returns the captured messages
func (m *MockEmailService) Sent() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentEmail(nil), m.sent...)
}
