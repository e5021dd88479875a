package core

import (
	"fmt"
	"sync"
)

// DefaultMaxRoundTrips bounds a run when no explicit cap is configured.
const DefaultMaxRoundTrips = 10

// RoundTripLimiter enforces a maximum number of model invocations per run.
type RoundTripLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewRoundTripLimiter creates a new limiter with a max number of round trips.
// If max <= 0, DefaultMaxRoundTrips applies; there is no unlimited mode.
func NewRoundTripLimiter(max int) *RoundTripLimiter {
	if max <= 0 {
		max = DefaultMaxRoundTrips
	}
	return &RoundTripLimiter{max: max}
}

// Increment records one round trip and returns an error wrapping
// ErrRoundTripBudgetExceeded once the cap is passed. The rejected attempt is
// not counted.
func (rl *RoundTripLimiter) Increment() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.count >= rl.max {
		return fmt.Errorf("%w: max %d", ErrRoundTripBudgetExceeded, rl.max)
	}

	rl.count++

	return nil
}

// Count returns the number of round trips made.
func (rl *RoundTripLimiter) Count() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return rl.count
}

// Max returns the configured cap.
func (rl *RoundTripLimiter) Max() int { return rl.max }

// Remaining returns how many round trips are left before hitting the cap.
func (rl *RoundTripLimiter) Remaining() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return rl.max - rl.count
}
