package auth

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// ResponseFloor pads a request out to a minimum duration plus random jitter so that callers
// cannot tell from latency whether an account exists or an email was sent.
type ResponseFloor struct {
	minimum time.Duration
	jitter  time.Duration
}

// NewResponseFloor creates a new ResponseFloor. A zero minimum disables padding.
func NewResponseFloor(minimum, jitter time.Duration) *ResponseFloor {
	return &ResponseFloor{minimum: minimum, jitter: jitter}
}

// target returns the padded duration for one request
func (f *ResponseFloor) target() time.Duration {
	if f.jitter <= 0 {
		return f.minimum
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(f.jitter)))
	if err != nil {
		return f.minimum
	}
	return f.minimum + time.Duration(n.Int64())
}

// WaitFrom sleeps until at least the padded duration has passed since start, or ctx is done
func (f *ResponseFloor) WaitFrom(ctx context.Context, start time.Time) {
	if f == nil || f.minimum <= 0 {
		return
	}

	remaining := f.target() - time.Since(start)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
