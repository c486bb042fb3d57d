package core

import (
	"fmt"
	"sync"
)

// DefaultMaxSteps bounds the number of node invocations per run when no
// explicit budget is configured.
const DefaultMaxSteps = 10

// StepLimiter enforces a maximum number of node invocations per run.
type StepLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewStepLimiter creates a new limiter with a max number of steps.
// If max <= 0, DefaultMaxSteps is used.
func NewStepLimiter(max int) *StepLimiter {
	if max <= 0 {
		max = DefaultMaxSteps
	}
	return &StepLimiter{max: max}
}

// Increment increases the step counter and returns ErrStepBudgetExceeded
// once the budget is spent.
func (sl *StepLimiter) Increment() error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.count++
	if sl.count > sl.max {
		return fmt.Errorf("%w: %d", ErrStepBudgetExceeded, sl.max)
	}

	return nil
}

// Count returns the current number of steps taken.
func (sl *StepLimiter) Count() int {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	return sl.count
}

// Max returns the configured budget.
func (sl *StepLimiter) Max() int { return sl.max }

// Remaining returns how many steps are left before hitting the limit.
func (sl *StepLimiter) Remaining() int {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.count >= sl.max {
		return 0
	}

	return sl.max - sl.count
}
