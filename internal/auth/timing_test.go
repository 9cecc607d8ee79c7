package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/tourney/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestResponseFloor_PadsShortRequests(t *testing.T) {
	floor := auth.NewResponseFloor(100*time.Millisecond, 50*time.Millisecond)
	start := time.Now()

	floor.WaitFrom(context.Background(), start)

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 250*time.Millisecond)
}

func TestResponseFloor_SkipsWhenAlreadySlow(t *testing.T) {
	floor := auth.NewResponseFloor(50*time.Millisecond, 0)
	start := time.Now().Add(-time.Second)

	before := time.Now()
	floor.WaitFrom(context.Background(), start)

	assert.Less(t, time.Since(before), 10*time.Millisecond)
}

func TestResponseFloor_Disabled(t *testing.T) {
	before := time.Now()

	auth.NewResponseFloor(0, time.Second).WaitFrom(context.Background(), time.Now())
	var nilFloor *auth.ResponseFloor
	nilFloor.WaitFrom(context.Background(), time.Now())

	assert.Less(t, time.Since(before), 10*time.Millisecond)
}

func TestResponseFloor_StopsOnContextCancel(t *testing.T) {
	floor := auth.NewResponseFloor(5*time.Second, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	before := time.Now()
	floor.WaitFrom(ctx, time.Now())

	assert.Less(t, time.Since(before), time.Second)
}
