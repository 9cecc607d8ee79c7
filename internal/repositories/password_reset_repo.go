package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/tourney/internal/database"
	"github.com/BradenHooton/tourney/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PasswordResetRepository handles password reset token data access
type PasswordResetRepository struct {
	pool *pgxpool.Pool
}

// NewPasswordResetRepository creates a new PasswordResetRepository
func NewPasswordResetRepository(db *database.DB) *PasswordResetRepository {
	return &PasswordResetRepository{pool: db.Pool}
}

const resetTokenColumns = `id, user_id, token_hash, email, expires_at, used_at, created_at`

func scanResetTokenRow(row rowScanner) (*models.PasswordResetToken, error) {
	var token models.PasswordResetToken

	err := row.Scan(
		&token.ID, &token.UserID, &token.TokenHash, &token.Email,
		&token.ExpiresAt, &token.UsedAt, &token.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &token, nil
}

// Create stores a new reset token hash
func (r *PasswordResetRepository) Create(ctx context.Context, userID, tokenHash, email string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	query := `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, email, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + resetTokenColumns

	token, err := scanResetTokenRow(r.pool.QueryRow(ctx, query, uuid.New().String(), userID, tokenHash, email, expiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create password reset token: %w", err)
	}

	return token, nil
}

// GetByTokenHash retrieves a token by its hash
func (r *PasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	query := `SELECT ` + resetTokenColumns + ` FROM password_reset_tokens WHERE token_hash = $1`
	return scanResetTokenRow(r.pool.QueryRow(ctx, query, tokenHash))
}

// MarkAsUsed marks a token as used; a token that is already used reports ErrNotFound
func (r *PasswordResetRepository) MarkAsUsed(ctx context.Context, id string) error {
	query := `
		UPDATE password_reset_tokens
		SET used_at = NOW()
		WHERE id = $1 AND used_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark token as used: %w", err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// DeleteByUserID removes every pending token for a user
func (r *PasswordResetRepository) DeleteByUserID(ctx context.Context, userID string) error {
	query := `DELETE FROM password_reset_tokens WHERE user_id = $1 AND used_at IS NULL`

	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete tokens for user: %w", err)
	}

	return nil
}

// CleanupExpired deletes tokens that expired more than a day ago
func (r *PasswordResetRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM password_reset_tokens
		WHERE expires_at < NOW() - INTERVAL '1 day'
	`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired reset tokens: %w", err)
	}

	return result.RowsAffected(), nil
}
