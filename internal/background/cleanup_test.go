package background_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BradenHooton/tourney/internal/background"
	"github.com/stretchr/testify/assert"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeExpired(ctx context.Context) (int, error) {
	p.calls.Add(1)
	return 1, p.err
}

type countingCleaner struct {
	calls atomic.Int32
}

func (c *countingCleaner) CleanupExpired(ctx context.Context) (int64, error) {
	c.calls.Add(1)
	return 2, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestCleanupManager_RunOnce(t *testing.T) {
	purger := &countingPurger{}
	cleaner := &countingCleaner{}

	background.NewCleanupManager(purger, cleaner, discardLogger(), time.Hour).RunOnce(context.Background())

	assert.Equal(t, int32(1), purger.calls.Load())
	assert.Equal(t, int32(1), cleaner.calls.Load())
}

func TestCleanupManager_PurgeFailureStillCleansTokens(t *testing.T) {
	purger := &countingPurger{err: errors.New("store down")}
	cleaner := &countingCleaner{}

	background.NewCleanupManager(purger, cleaner, discardLogger(), time.Hour).RunOnce(context.Background())

	assert.Equal(t, int32(1), cleaner.calls.Load())
}

func TestCleanupManager_NilTokenCleaner(t *testing.T) {
	purger := &countingPurger{}

	assert.NotPanics(t, func() {
		background.NewCleanupManager(purger, nil, discardLogger(), time.Hour).RunOnce(context.Background())
	})
}

func TestCleanupManager_TicksUntilStopped(t *testing.T) {
	purger := &countingPurger{}
	cm := background.NewCleanupManager(purger, nil, discardLogger(), 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool { return purger.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	cm.Stop()
	cm.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}

func TestCleanupManager_StopsOnContextCancel(t *testing.T) {
	cm := background.NewCleanupManager(&countingPurger{}, nil, discardLogger(), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}
