package models

import (
	"fmt"
	"time"
)

// AttemptRecord tracks how many rate-limited actions were recorded for a key
// inside the current window.
type AttemptRecord struct {
	Count         int       `json:"count"`
	LastAttemptAt time.Time `json:"lastAttempt"`
}

// Validate rejects records that cannot have been written by the limiter.
func (r AttemptRecord) Validate() error {
	if r.Count < 0 {
		return fmt.Errorf("%w: negative count %d", ErrCorruptRecord, r.Count)
	}
	if r.Count > 0 && r.LastAttemptAt.IsZero() {
		return fmt.Errorf("%w: count %d without lastAttempt", ErrCorruptRecord, r.Count)
	}
	return nil
}

// AttemptStatus is the limiter's answer to "may this key proceed?"
type AttemptStatus struct {
	Allowed           bool
	Remaining         int
	CooldownRemaining *time.Duration // nil unless the key is cooling down
	AttemptsMade      int
}

// LimiterPolicy configures an attempt limiter. It is immutable once the limiter is built.
type LimiterPolicy struct {
	MaxAttempts      int
	WindowDuration   time.Duration
	CooldownDuration time.Duration
}

// Validate enforces the policy constraints
func (p LimiterPolicy) Validate() error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive (got %d)", p.MaxAttempts)
	}
	if p.WindowDuration <= 0 {
		return fmt.Errorf("window duration must be positive (got %s)", p.WindowDuration)
	}
	if p.CooldownDuration <= 0 {
		return fmt.Errorf("cooldown duration must be positive (got %s)", p.CooldownDuration)
	}
	// Cooldown must lapse no later than the window so a cooling key always has a way back to fresh
	if p.CooldownDuration > p.WindowDuration {
		return fmt.Errorf("cooldown duration %s exceeds window duration %s", p.CooldownDuration, p.WindowDuration)
	}
	return nil
}
