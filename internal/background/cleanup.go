package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// AttemptPurger removes lapsed forgot-password attempt records
type AttemptPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// ResetTokenCleaner removes expired password reset tokens
type ResetTokenCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// CleanupManager periodically purges lapsed attempt records and expired reset tokens
type CleanupManager struct {
	attempts AttemptPurger
	tokens   ResetTokenCleaner
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager. tokens may be nil.
func NewCleanupManager(attempts AttemptPurger, tokens ResetTokenCleaner, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		attempts: attempts,
		tokens:   tokens,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task and blocks until Stop is called or ctx is done
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce performs a single cleanup pass
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	purged, err := cm.attempts.PurgeExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to purge expired recovery attempts", slog.Any("error", err))
	} else if purged > 0 {
		cm.logger.Info("expired recovery attempts purged", slog.Int("records", purged))
	}

	if cm.tokens == nil {
		return
	}

	rowsDeleted, err := cm.tokens.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired reset tokens", slog.Any("error", err))
		return
	}
	if rowsDeleted > 0 {
		cm.logger.Info("expired reset token cleanup completed", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
