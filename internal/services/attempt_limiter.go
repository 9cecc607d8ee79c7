package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/tourney/internal/models"
	pkglogger "github.com/BradenHooton/tourney/pkg/logger"
)

// DefaultAttemptCollection is the blob name the forgot-password attempts are stored under
const DefaultAttemptCollection = "forgotPasswordAttempts"

// AttemptStore persists the whole attempt collection as a single named JSON blob.
// Get returns nil, nil when nothing has been stored under name yet.
type AttemptStore interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Set(ctx context.Context, name string, value []byte) error
}

// AttemptStoreUpdater is implemented by stores that can apply a read-modify-write to a blob
// atomically across processes. fn receives the current blob (nil when absent) and returns the
// replacement; a nil replacement leaves the stored blob untouched. fn may be invoked more than once.
type AttemptStoreUpdater interface {
	Update(ctx context.Context, name string, fn func(current []byte) ([]byte, error)) error
}

// LimiterConfig holds configuration for an AttemptLimiter
type LimiterConfig struct {
	Policy     models.LimiterPolicy
	Collection string
	FailClosed bool // If true, deny when the store cannot be read; if false, treat the key as fresh
}

// AttemptLimiter counts rate-limited actions per normalized key inside a rolling window and
// imposes a cooldown once the threshold is reached.
type AttemptLimiter struct {
	store      AttemptStore
	policy     models.LimiterPolicy
	collection string
	failClosed bool
	logger     *slog.Logger

	clockMu sync.RWMutex
	now     func() time.Time

	// The collection is one blob, so every writer is serialised regardless of key
	mu sync.Mutex
}

type attemptCollection map[string]models.AttemptRecord

// NewAttemptLimiter creates a new AttemptLimiter
func NewAttemptLimiter(store AttemptStore, config LimiterConfig, logger *slog.Logger) (*AttemptLimiter, error) {
	if store == nil {
		return nil, fmt.Errorf("attempt store is required")
	}
	if err := config.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid limiter policy: %w", err)
	}

	collection := config.Collection
	if collection == "" {
		collection = DefaultAttemptCollection
	}

	return &AttemptLimiter{
		store:      store,
		policy:     config.Policy,
		collection: collection,
		failClosed: config.FailClosed,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// SetClock replaces the limiter's time source. Safe to call while the limiter is in use.
func (l *AttemptLimiter) SetClock(now func() time.Time) {
	l.clockMu.Lock()
	defer l.clockMu.Unlock()
	l.now = now
}

func (l *AttemptLimiter) currentTime() time.Time {
	l.clockMu.RLock()
	now := l.now
	l.clockMu.RUnlock()
	return now()
}

// Policy returns the policy the limiter was built with
func (l *AttemptLimiter) Policy() models.LimiterPolicy {
	return l.policy
}

// NormalizeKey lowercases and trims an identity key
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Status reports whether key may attempt the guarded action. It never writes to the store.
// On a store read failure the returned status follows the configured failure mode and the
// error wraps models.ErrStoreUnavailable.
func (l *AttemptLimiter) Status(ctx context.Context, key string) (models.AttemptStatus, error) {
	key = NormalizeKey(key)
	if key == "" {
		return l.freshStatus(), nil
	}

	blob, err := l.store.Get(ctx, l.collection)
	if err != nil {
		l.logger.Error("failed to read attempt collection",
			slog.String("collection", l.collection),
			slog.Bool("fail_closed", l.failClosed),
			slog.Any("error", err))
		return l.failureStatus(), fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}

	records, _ := l.decode(blob)
	status, _ := l.evaluate(records[key], l.currentTime())
	return status, nil
}

// RecordAttempt unconditionally counts one attempt for key and persists it.
// A record whose window or cooldown has lapsed starts again from zero.
func (l *AttemptLimiter) RecordAttempt(ctx context.Context, key string) (models.AttemptRecord, error) {
	key = NormalizeKey(key)
	if key == "" {
		return models.AttemptRecord{}, nil
	}

	var recorded models.AttemptRecord
	err := l.mutate(ctx, func(records attemptCollection, now time.Time) bool {
		recorded = l.increment(records, key, now)
		return true
	})
	if err != nil {
		l.logger.Error("failed to record attempt",
			slog.String("key", pkglogger.SanitizedEmail(key)),
			slog.Any("error", err))
		return models.AttemptRecord{}, err
	}

	return recorded, nil
}

// TryRecordAttempt checks and records in one atomic step. When the key is allowed the attempt
// is recorded and the post-attempt status is returned with Allowed set; when it is cooling
// nothing is written and the cooling status is returned.
func (l *AttemptLimiter) TryRecordAttempt(ctx context.Context, key string) (models.AttemptStatus, error) {
	key = NormalizeKey(key)
	if key == "" {
		return l.freshStatus(), nil
	}

	var result models.AttemptStatus
	err := l.mutate(ctx, func(records attemptCollection, now time.Time) bool {
		status, _ := l.evaluate(records[key], now)
		if !status.Allowed {
			result = status
			return false
		}

		rec := l.increment(records, key, now)
		result = models.AttemptStatus{
			Allowed:      true,
			Remaining:    max(l.policy.MaxAttempts-rec.Count, 0),
			AttemptsMade: rec.Count,
		}
		return true
	})
	if err != nil {
		l.logger.Error("failed to check and record attempt",
			slog.String("key", pkglogger.SanitizedEmail(key)),
			slog.Bool("fail_closed", l.failClosed),
			slog.Any("error", err))
		return l.failureStatus(), err
	}

	return result, nil
}

// Reset purges any record for key
func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	key = NormalizeKey(key)
	if key == "" {
		return nil
	}

	return l.mutate(ctx, func(records attemptCollection, _ time.Time) bool {
		if _, ok := records[key]; !ok {
			return false
		}
		delete(records, key)
		return true
	})
}

// PurgeExpired removes every record whose window or cooldown has lapsed and returns how many
// were removed.
func (l *AttemptLimiter) PurgeExpired(ctx context.Context) (int, error) {
	purged := 0
	err := l.mutate(ctx, func(records attemptCollection, now time.Time) bool {
		purged = 0
		for key, rec := range records {
			if _, expired := l.evaluate(rec, now); expired {
				delete(records, key)
				purged++
			}
		}
		return purged > 0
	})
	if err != nil {
		return 0, err
	}

	return purged, nil
}

// increment bumps the record for key, restarting it when it has lapsed
func (l *AttemptLimiter) increment(records attemptCollection, key string, now time.Time) models.AttemptRecord {
	rec := records[key]
	if _, expired := l.evaluate(rec, now); expired {
		rec = models.AttemptRecord{}
	}

	rec.Count++
	rec.LastAttemptAt = now.UTC()
	records[key] = rec
	return rec
}

// evaluate computes the status of a record at now. expired reports a record that should be
// purged: its window elapsed, or it reached the threshold and its cooldown has since elapsed.
func (l *AttemptLimiter) evaluate(rec models.AttemptRecord, now time.Time) (status models.AttemptStatus, expired bool) {
	if rec.Count == 0 {
		return l.freshStatus(), false
	}

	age := now.Sub(rec.LastAttemptAt)
	if age < 0 {
		age = 0
	}

	if age >= l.policy.WindowDuration {
		return l.freshStatus(), true
	}

	if rec.Count >= l.policy.MaxAttempts {
		if age < l.policy.CooldownDuration {
			remaining := l.policy.CooldownDuration - age
			return models.AttemptStatus{
				Allowed:           false,
				Remaining:         0,
				CooldownRemaining: &remaining,
				AttemptsMade:      rec.Count,
			}, false
		}
		return l.freshStatus(), true
	}

	return models.AttemptStatus{
		Allowed:      true,
		Remaining:    l.policy.MaxAttempts - rec.Count,
		AttemptsMade: rec.Count,
	}, false
}

func (l *AttemptLimiter) freshStatus() models.AttemptStatus {
	return models.AttemptStatus{
		Allowed:   true,
		Remaining: l.policy.MaxAttempts,
	}
}

// failureStatus is the answer given when the store cannot be consulted
func (l *AttemptLimiter) failureStatus() models.AttemptStatus {
	if l.failClosed {
		return models.AttemptStatus{Allowed: false, Remaining: 0}
	}
	return l.freshStatus()
}

// mutate runs a read-modify-write over the collection. fn reports whether it changed records;
// a collection that needed repair on decode is written back even when fn changed nothing.
func (l *AttemptLimiter) mutate(ctx context.Context, fn func(records attemptCollection, now time.Time) bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	apply := func(current []byte) ([]byte, error) {
		records, repaired := l.decode(current)
		if changed := fn(records, l.currentTime()); !changed && !repaired {
			return nil, nil
		}

		next, err := json.Marshal(records)
		if err != nil {
			return nil, fmt.Errorf("failed to encode attempt collection: %w", err)
		}
		return next, nil
	}

	if updater, ok := l.store.(AttemptStoreUpdater); ok {
		if err := updater.Update(ctx, l.collection, apply); err != nil {
			return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
		}
		return nil
	}

	current, err := l.store.Get(ctx, l.collection)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}

	next, err := apply(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}

	if err := l.store.Set(ctx, l.collection, next); err != nil {
		return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}
	return nil
}

// decode parses a stored collection. Unparseable blobs and invalid entries are dropped rather
// than surfaced; repaired reports that something was dropped.
func (l *AttemptLimiter) decode(blob []byte) (records attemptCollection, repaired bool) {
	records = make(attemptCollection)
	if len(blob) == 0 {
		return records, false
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(blob, &raw); err != nil {
		l.logger.Warn("discarding corrupt attempt collection",
			slog.String("collection", l.collection),
			slog.Any("error", fmt.Errorf("%w: %w", models.ErrCorruptRecord, err)))
		return records, true
	}

	for storedKey, entry := range raw {
		key := NormalizeKey(storedKey)

		var rec models.AttemptRecord
		err := json.Unmarshal(entry, &rec)
		if err == nil {
			err = rec.Validate()
		}
		if err != nil || key == "" {
			l.logger.Warn("discarding corrupt attempt record",
				slog.String("collection", l.collection),
				slog.String("key", pkglogger.SanitizedEmail(key)),
				slog.Any("error", err))
			repaired = true
			continue
		}

		if key != storedKey {
			repaired = true
		}
		if existing, ok := records[key]; ok && existing.LastAttemptAt.After(rec.LastAttemptAt) {
			continue
		}
		records[key] = rec
	}

	return records, repaired
}
